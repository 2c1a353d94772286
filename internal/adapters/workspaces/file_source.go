package workspaces

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Workspaces []core.Workspace `yaml:"workspaces"`
}

// FileSource loads workspaces from a YAML file
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a new YAML workspace source
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// LoadWorkspaces reads the file. API keys may reference environment variables
// as ${NAME}.
func (s *FileSource) LoadWorkspaces(_ context.Context) ([]core.Workspace, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}
	return parseFile(data, s.logger)
}

func parseFile(data []byte, logger *zap.Logger) ([]core.Workspace, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workspace file: %w", err)
	}

	out := make([]core.Workspace, 0, len(doc.Workspaces))
	for _, ws := range doc.Workspaces {
		ws.APIKey = os.ExpandEnv(ws.APIKey)
		ws.Platform = core.Platform(strings.ToLower(strings.TrimSpace(string(ws.Platform))))
		if ws.Name == "" {
			ws.Name = ws.ID
		}
		out = append(out, ws)
	}
	if err := checkDuplicates(out); err != nil {
		return nil, err
	}

	logger.Info("Loaded workspaces from file", zap.Int("count", len(out)))
	return out, nil
}

// checkDuplicates rejects a list that names the same workspace twice, since
// reports are keyed by workspace id
func checkDuplicates(list []core.Workspace) error {
	seen := make(map[string]struct{}, len(list))
	for _, ws := range list {
		if ws.ID == "" {
			continue
		}
		if _, ok := seen[ws.ID]; ok {
			return fmt.Errorf("duplicate workspace id %q", ws.ID)
		}
		seen[ws.ID] = struct{}{}
	}
	return nil
}
