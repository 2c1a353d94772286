package workspaces

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource loads workspaces from a Google Sheet. Each row holds, in
// order: workspace id, display name, platform, API key. An optional fifth
// column lists internal domains separated by commas.
type SheetsSource struct {
	spreadsheetID string
	readRange     string
	opts          []option.ClientOption
	logger        *zap.Logger
}

// NewSheetsSource creates a new Google Sheets workspace source
func NewSheetsSource(spreadsheetID, readRange string, logger *zap.Logger, opts ...option.ClientOption) (*SheetsSource, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	return &SheetsSource{
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		opts:          opts,
		logger:        logger,
	}, nil
}

// LoadWorkspaces reads the configured range
func (s *SheetsSource) LoadWorkspaces(ctx context.Context) ([]core.Workspace, error) {
	srv, err := sheets.NewService(ctx, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	resp, err := srv.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace sheet: %w", err)
	}

	out := make([]core.Workspace, 0, len(resp.Values))
	for i, row := range resp.Values {
		ws, ok := rowToWorkspace(row)
		if !ok {
			s.logger.Debug("Skipping blank workspace row", zap.Int("row", i+2))
			continue
		}
		out = append(out, ws)
	}
	if err := checkDuplicates(out); err != nil {
		return nil, err
	}

	s.logger.Info("Loaded workspaces from sheet",
		zap.String("spreadsheet_id", s.spreadsheetID),
		zap.Int("count", len(out)))
	return out, nil
}

func rowToWorkspace(row []interface{}) (core.Workspace, bool) {
	cell := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[i]))
	}

	ws := core.Workspace{
		ID:       cell(0),
		Name:     cell(1),
		Platform: core.Platform(strings.ToLower(cell(2))),
		APIKey:   cell(3),
	}
	if ws.ID == "" && ws.APIKey == "" {
		return core.Workspace{}, false
	}
	if ws.Name == "" {
		ws.Name = ws.ID
	}
	for _, d := range strings.Split(cell(4), ",") {
		if d = strings.TrimSpace(d); d != "" {
			ws.InternalDomains = append(ws.InternalDomains, d)
		}
	}
	return ws, true
}
