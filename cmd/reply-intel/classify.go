package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/reply-intel/internal/adapters/mailfile"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/di"
	"github.com/mikey/reply-intel/internal/factory"
	"github.com/mikey/reply-intel/internal/keyword"
	"github.com/mikey/reply-intel/internal/pipeline"
	"github.com/mikey/reply-intel/internal/utils"
)

var (
	classifyFile string
	classifyLead string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single reply read from an .eml file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := di.BuildClassifyContainer(cfg)
		if err != nil {
			return fmt.Errorf("build container: %w", err)
		}

		return container.Invoke(func(
			kw *keyword.Filter,
			semantic *pipeline.SemanticClassifier,
			tp *utils.TextProcessor,
			logger *zap.Logger,
		) error {
			defer logger.Sync()

			var in io.Reader = os.Stdin
			if classifyFile != "" {
				f, err := os.Open(classifyFile)
				if err != nil {
					return fmt.Errorf("open input file: %w", err)
				}
				defer f.Close()
				in = f
				logger.Debug("Reading reply from file", zap.String("file", classifyFile))
			}

			reply, err := mailfile.ParseReply(in, tp)
			if err != nil {
				return err
			}
			if classifyLead != "" {
				reply.LeadEmail = classifyLead
			}

			result, ok := kw.Classify(reply)
			if !ok {
				ws := core.Workspace{ID: "local", Platform: core.PlatformInstantly}
				classified, _ := semantic.ClassifyAll(cmd.Context(), ws, []core.Reply{reply})
				result = classified[0].Result
			}

			writer, err := factory.CreateReportWriter(cfg, os.Stdout, logger)
			if err != nil {
				return err
			}
			return writer.WriteClassification(cmd.Context(), reply, result)
		})
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "input .eml file (stdin if not given)")
	classifyCmd.Flags().StringVar(&classifyLead, "lead", "", "original lead address when someone else replied")
	rootCmd.AddCommand(classifyCmd)
}
