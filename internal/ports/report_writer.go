package ports

import (
	"context"

	"github.com/mikey/reply-intel/internal/core"
)

// ReportWriter defines the interface for presenting pipeline results
type ReportWriter interface {
	// WriteReport writes the consolidated report of a run
	WriteReport(ctx context.Context, report *core.Report) error

	// WriteClassification writes the verdict on a single reply
	WriteClassification(ctx context.Context, reply core.Reply, result core.ClassificationResult) error
}
