package reconciler_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	pkgerrors "github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/reconciler"
	"github.com/agentstation/catalogsync/pkg/store"
)

var orderPlaced = catalogs.Key{Kind: catalogs.KindMessage, MessageType: catalogs.MessageEvent, ID: "OrderPlaced"}

func event(id, version string, latest bool) catalogs.Revision {
	return catalogs.Revision{
		ID:          id,
		Kind:        catalogs.KindMessage,
		MessageType: catalogs.MessageEvent,
		Version:     version,
		IsLatest:    latest,
		Source:      "manifest",
		SourceFields: catalogs.Fields{
			"name":       id,
			"schemaPath": "schema.json",
		},
		Files: map[string][]byte{"schema.json": []byte(`{"type":"object"}`)},
	}
}

func service(id, version string, latest bool) catalogs.Revision {
	return catalogs.Revision{
		ID:           id,
		Kind:         catalogs.KindService,
		Version:      version,
		IsLatest:     latest,
		Source:       "manifest",
		SourceFields: catalogs.Fields{"name": id},
	}
}

func newFS(t *testing.T) *store.FS {
	t.Helper()
	s, err := store.NewFS(t.TempDir())
	require.NoError(t, err)
	return s
}

func newReconciler(t *testing.T, s catalogs.Store, opts ...reconciler.Option) reconciler.Reconciler {
	t.Helper()
	r, err := reconciler.New(s, opts...)
	require.NoError(t, err)
	return r
}

func run(t *testing.T, r reconciler.Reconciler, revs ...catalogs.Revision) *reconciler.Result {
	t.Helper()
	res, err := r.Reconcile(context.Background(), revs)
	require.NoError(t, err)
	return res
}

func actions(res *reconciler.Result, key catalogs.Key) []reconciler.Action {
	var out []reconciler.Action
	for _, o := range res.ByKey(key) {
		out = append(out, o.Action)
	}
	return out
}

func current(t *testing.T, s catalogs.Store, key catalogs.Key) *catalogs.Entity {
	t.Helper()
	e, err := s.Get(context.Background(), key, "latest")
	require.NoError(t, err)
	return e
}

func archived(t *testing.T, s catalogs.Store, key catalogs.Key) []string {
	t.Helper()
	vs, err := s.ListArchived(context.Background(), key)
	require.NoError(t, err)
	return vs
}

// tree reads every file under root keyed by relative path.
func tree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// faultyStore fails writes of the listed ids after an optional archive.
type faultyStore struct {
	catalogs.Store
	failPut map[string]bool
}

func (f *faultyStore) Put(ctx context.Context, e *catalogs.Entity, opts catalogs.PutOptions) error {
	if f.failPut[e.ID] {
		return pkgerrors.NewIOError("write", e.ID, pkgerrors.New("disk full"))
	}
	return f.Store.Put(ctx, e, opts)
}
