package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/di"
	"github.com/mikey/reply-intel/internal/factory"
	"github.com/mikey/reply-intel/internal/pipeline"
	"github.com/mikey/reply-intel/internal/ports"
)

var (
	runDays       int
	runStart      string
	runEnd        string
	runDryRun     bool
	runWorkers    int
	runWorkspaces []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline over every configured workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runDryRun {
			cfg.Set("pipeline.dry_run", true)
		}
		if runWorkers > 0 {
			cfg.Set("pipeline.workers", runWorkers)
		}
		if runDays > 0 {
			cfg.Set("pipeline.lookback_days", runDays)
		}

		container, err := di.BuildContainer(cfg)
		if err != nil {
			return fmt.Errorf("build container: %w", err)
		}

		return container.Invoke(func(
			orchestrator *pipeline.Orchestrator,
			source ports.WorkspaceSource,
			cache factory.StoppableCache,
			logger *zap.Logger,
		) error {
			defer logger.Sync()
			if cache != nil {
				defer cache.Stop()
			}
			return runPipeline(ctx, orchestrator, source, logger)
		})
	},
}

func init() {
	runCmd.Flags().IntVar(&runDays, "days", 0, "lookback window in days (default from config)")
	runCmd.Flags().StringVar(&runStart, "start", "", "window start date, YYYY-MM-DD (requires --end)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "window end date, YYYY-MM-DD, inclusive")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "classify and report without marking leads")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "number of workspaces processed in parallel")
	runCmd.Flags().StringSliceVar(&runWorkspaces, "workspace", nil, "only process these workspace ids")
	runCmd.MarkFlagsRequiredTogether("start", "end")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(ctx context.Context, orchestrator *pipeline.Orchestrator, source ports.WorkspaceSource, logger *zap.Logger) error {
	window, err := resolveWindow(time.Now().UTC(), logger)
	if err != nil {
		return err
	}

	list, err := source.LoadWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("load workspaces: %w", err)
	}
	list = selectWorkspaces(list, runWorkspaces)
	if len(list) == 0 {
		logger.Warn("No workspaces to process")
	}

	report := orchestrator.RunPipeline(ctx, list, window)

	writer, err := factory.CreateReportWriter(cfg, os.Stdout, logger)
	if err != nil {
		return err
	}
	return writer.WriteReport(ctx, report)
}

// resolveWindow prefers explicit dates over the lookback
func resolveWindow(now time.Time, logger *zap.Logger) (core.Window, error) {
	if runStart != "" || runEnd != "" {
		window, clamped, err := core.ExplicitWindow(now, runStart, runEnd)
		if err != nil {
			return core.Window{}, err
		}
		if clamped {
			logger.Warn("End date is in the future, using now instead", zap.String("end", runEnd))
		}
		return window, nil
	}
	pc, err := cfg.GetPipeline()
	if err != nil {
		return core.Window{}, err
	}
	return core.LookbackWindow(now, pc.LookbackDays)
}

func selectWorkspaces(list []core.Workspace, ids []string) []core.Workspace {
	if len(ids) == 0 {
		return list
	}
	out := make([]core.Workspace, 0, len(ids))
	for _, ws := range list {
		if slices.Contains(ids, ws.ID) {
			out = append(out, ws)
		}
	}
	return out
}
