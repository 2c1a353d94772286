package factory

import (
	"fmt"

	"github.com/mikey/reply-intel/internal/adapters/workspaces"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/ports"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// WorkspaceSourceFactory creates the configured workspace source
type WorkspaceSourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewWorkspaceSourceFactory creates a new workspace source factory
func NewWorkspaceSourceFactory(cfg *config.Config, logger *zap.Logger) *WorkspaceSourceFactory {
	return &WorkspaceSourceFactory{cfg: cfg, logger: logger}
}

// CreateWorkspaceSource creates a workspace source based on the configuration
func (f *WorkspaceSourceFactory) CreateWorkspaceSource() (ports.WorkspaceSource, error) {
	wsCfg := f.cfg.GetWorkspaces()

	switch wsCfg.Source {
	case "file":
		return workspaces.NewFileSource(wsCfg.File, f.logger), nil
	case "sheets":
		var opts []option.ClientOption
		switch {
		case wsCfg.Sheets.CredentialsFile != "":
			opts = append(opts,
				option.WithCredentialsFile(wsCfg.Sheets.CredentialsFile),
				option.WithScopes(sheets.SpreadsheetsReadonlyScope))
		case wsCfg.Sheets.APIKey != "":
			opts = append(opts, option.WithAPIKey(wsCfg.Sheets.APIKey))
		default:
			return nil, fmt.Errorf("sheets workspace source needs a credentials file or an API key")
		}
		return workspaces.NewSheetsSource(wsCfg.Sheets.SpreadsheetID, wsCfg.Sheets.Range, f.logger, opts...)
	default:
		return nil, fmt.Errorf("unsupported workspace source: %s", wsCfg.Source)
	}
}
