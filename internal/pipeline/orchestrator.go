package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkspaceRunner processes a single workspace
type WorkspaceRunner interface {
	Run(ctx context.Context, ws core.Workspace, window core.Window) core.WorkspaceReport
}

// OrchestratorOptions controls the fan-out
type OrchestratorOptions struct {
	Workers  int
	Deadline time.Duration
	DryRun   bool
}

// Orchestrator runs the pipeline over many workspaces in parallel. Every
// workspace is isolated: a failure or panic in one never reaches the others.
type Orchestrator struct {
	runner WorkspaceRunner
	opts   OrchestratorOptions
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(runner WorkspaceRunner, opts OrchestratorOptions, logger *zap.Logger) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{runner: runner, opts: opts, logger: logger}
}

// RunPipeline processes every workspace and returns a consolidated report.
// Workspaces still running or not yet started at the deadline are reported
// as incomplete.
func (o *Orchestrator) RunPipeline(ctx context.Context, workspaces []core.Workspace, window core.Window) *core.Report {
	if o.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Deadline)
		defer cancel()
	}

	report := &core.Report{
		RunID:     uuid.NewString(),
		Window:    window,
		StartedAt: time.Now(),
		DryRun:    o.opts.DryRun,
	}
	logger := o.logger.With(zap.String("run_id", report.RunID))
	logger.Info("Starting pipeline run",
		zap.Int("workspaces", len(workspaces)),
		zap.Int("workers", o.opts.Workers),
		zap.Time("since", window.Since),
		zap.Time("until", window.Until))

	results := make([]core.WorkspaceReport, len(workspaces))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)

	for i, ws := range workspaces {
		g.Go(func() error {
			results[i] = o.runOne(ctx, logger, ws, window)
			return nil // don't abort the run on individual failure
		})
	}
	_ = g.Wait()

	report.Workspaces = results
	report.FinishedAt = time.Now()
	report.Finalize()

	logger.Info("Pipeline run finished",
		zap.Int("ok", report.Totals.ByStatus[core.StatusOK]),
		zap.Int("partial", report.Totals.ByStatus[core.StatusPartial]),
		zap.Int("failed", report.Totals.ByStatus[core.StatusFailed]),
		zap.Int("incomplete", report.Totals.ByStatus[core.StatusIncomplete]),
		zap.Int("opportunities", report.Totals.Opportunities),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report
}

func (o *Orchestrator) runOne(ctx context.Context, logger *zap.Logger, ws core.Workspace, window core.Window) (rep core.WorkspaceReport) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Workspace run panicked",
				zap.String("workspace", ws.ID),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			rep = core.WorkspaceReport{
				WorkspaceID:   ws.ID,
				Name:          ws.Name,
				Platform:      ws.Platform,
				Status:        core.StatusFailed,
				Error:         fmt.Sprintf("panic: %v", p),
				Opportunities: []core.Opportunity{},
				Outcomes:      []core.MarkingOutcome{},
			}
			rep.Failures = append(rep.Failures, core.Failure{Stage: core.StageRun, Ref: ws.ID, Error: rep.Error})
		}
	}()

	if err := ctx.Err(); err != nil {
		return core.WorkspaceReport{
			WorkspaceID:   ws.ID,
			Name:          ws.Name,
			Platform:      ws.Platform,
			Status:        core.StatusIncomplete,
			Error:         fmt.Sprintf("not started: %v", err),
			Opportunities: []core.Opportunity{},
			Outcomes:      []core.MarkingOutcome{},
		}
	}

	return o.runner.Run(ctx, ws, window)
}
