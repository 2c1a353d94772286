package ports

import (
	"context"

	"github.com/mikey/reply-intel/internal/core"
)

// WorkspaceSource defines where workspace credentials are loaded from
type WorkspaceSource interface {
	// LoadWorkspaces returns every configured workspace as found. Entries are
	// validated per workspace at run time so one bad row only fails itself.
	LoadWorkspaces(ctx context.Context) ([]core.Workspace, error)
}
