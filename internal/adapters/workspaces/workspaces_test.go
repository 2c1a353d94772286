package workspaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func TestFileSource(t *testing.T) {
	t.Setenv("ACME_INSTANTLY_KEY", "secret-1")
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspaces:
  - id: acme
    name: Acme Corp
    platform: Instantly
    api_key: ${ACME_INSTANTLY_KEY}
    internal_domains: [acme.com]
  - id: globex
    platform: bison
    api_key: plain-key
  - id: broken
    platform: bison
`), 0o600))

	list, err := NewFileSource(path, zap.NewNop()).LoadWorkspaces(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, core.PlatformInstantly, list[0].Platform)
	assert.Equal(t, "secret-1", list[0].APIKey)
	assert.Equal(t, []string{"acme.com"}, list[0].InternalDomains)
	assert.Equal(t, "globex", list[1].Name)

	// Invalid rows are kept so the run reports them as failed workspaces.
	assert.Error(t, list[2].Validate())
}

func TestFileSourceRejectsDuplicates(t *testing.T) {
	_, err := parseFile([]byte(`
workspaces:
  - {id: a, platform: bison, api_key: k}
  - {id: a, platform: instantly, api_key: k}
`), zap.NewNop())
	assert.ErrorContains(t, err, "duplicate workspace id")
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop()).LoadWorkspaces(context.Background())
	assert.Error(t, err)
}

func TestSheetsSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"range": "Workspaces!A2:E4",
			"majorDimension": "ROWS",
			"values": [
				["acme", "Acme Corp", "instantly", "key-1", "acme.com, acme.io"],
				[],
				["globex", "", "Bison", "key-2"]
			]
		}`))
	}))
	defer ts.Close()

	src, err := NewSheetsSource("sheet-1", "Workspaces!A2:E", zap.NewNop(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	list, err := src.LoadWorkspaces(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "acme", list[0].ID)
	assert.Equal(t, []string{"acme.com", "acme.io"}, list[0].InternalDomains)
	assert.Equal(t, core.PlatformBison, list[1].Platform)
	assert.Equal(t, "globex", list[1].Name)
	assert.NoError(t, list[1].Validate())
}

func TestNewSheetsSourceRequiresID(t *testing.T) {
	_, err := NewSheetsSource("", "A1:D", zap.NewNop())
	assert.Error(t, err)
}
