package main

import (
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveWindow(t *testing.T) {
	cfg = config.NewFromViper(config.NewEmptyViper())
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	t.Cleanup(func() { runStart, runEnd = "", "" })

	w, err := resolveWindow(now, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), w.Since)
	assert.Equal(t, now, w.Until)

	runStart, runEnd = "2026-03-01", "2026-03-31"
	w, err = resolveWindow(now, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), w.Since)
	assert.Equal(t, now, w.Until)

	runStart, runEnd = "2026-03-05", "2026-03-01"
	_, err = resolveWindow(now, zap.NewNop())
	assert.ErrorIs(t, err, core.ErrInvalidWindow)
}

func TestSelectWorkspaces(t *testing.T) {
	list := []core.Workspace{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	assert.Len(t, selectWorkspaces(list, nil), 3)

	got := selectWorkspaces(list, []string{"c", "a", "zzz"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
