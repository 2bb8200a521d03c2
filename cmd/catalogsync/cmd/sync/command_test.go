package sync

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

const manifestYAML = `revisions:
  - kind: service
    id: Orders
    version: "1"
  - kind: service
    id: Orders
    version: "2"
  - kind: domain
    id: ../Sales
    version: "1"
    latest: true
`

func mockApp(t *testing.T, root string) *appcontext.Mock {
	t.Helper()
	return &appcontext.Mock{
		Format: "json",
		CatalogSyncWithOptionsFunc: func(opts ...catalogsync.Option) (catalogsync.CatalogSync, error) {
			return catalogsync.New(append([]catalogsync.Option{catalogsync.WithRoot(root)}, opts...)...)
		},
	}
}

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0o644))
	return path
}

func TestExecuteReportsFailures(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer

	err := Execute(context.Background(), mockApp(t, root), &buf, &Flags{Generator: DefaultGenerator}, []string{writeManifest(t)})
	require.ErrorIs(t, err, cmdutil.ErrFailures, "the invalid domain id fails its revision")
	assert.Contains(t, buf.String(), `"superseded": 1`)
	assert.Contains(t, buf.String(), `"errorKind": "invalid"`)
	assert.DirExists(t, filepath.Join(root, "services", "Orders", "versioned", "1"))
}

func TestExecuteFlagsOverrideGenerator(t *testing.T) {
	root := t.TempDir()
	app := mockApp(t, root)
	var seen []string
	app.GeneratorFunc = func(name string) reconciler.GeneratorConfig {
		seen = append(seen, name)
		return reconciler.DefaultGeneratorConfig(name)
	}

	var buf bytes.Buffer
	flags := &Flags{Generator: "orders", LatestOnly: true, DryRun: true}
	err := Execute(context.Background(), app, &buf, flags, []string{writeManifest(t)})
	require.ErrorIs(t, err, cmdutil.ErrFailures)

	assert.Equal(t, []string{"orders"}, seen)
	assert.Contains(t, buf.String(), `"dryRun": true`)
	assert.Contains(t, buf.String(), `"reason": "excluded"`)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry runs leave the catalog untouched")
}

func TestNewCommandRequiresManifest(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
