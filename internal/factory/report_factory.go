package factory

import (
	"fmt"
	"io"

	"github.com/mikey/reply-intel/internal/adapters/report"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/ports"
	"go.uber.org/zap"
)

// CreateReportWriter creates the configured report writer on out
func CreateReportWriter(cfg *config.Config, out io.Writer, logger *zap.Logger) (ports.ReportWriter, error) {
	reportCfg := cfg.GetReport()

	switch reportCfg.Format {
	case "text", "":
		return report.NewTextWriter(out, logger, reportCfg.Verbose), nil
	case "json":
		return report.NewJSONWriter(out), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", reportCfg.Format)
	}
}
