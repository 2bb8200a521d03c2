package reconciler_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	pkgerrors "github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/logging"
	"github.com/agentstation/catalogsync/pkg/reconciler"
	"github.com/agentstation/catalogsync/pkg/store"
)

func TestSameVersionResubmitted(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	res := run(t, r, event("OrderPlaced", "1", true))
	assert.Equal(t, []reconciler.Action{reconciler.ActionCreate}, actions(res, orderPlaced))
	created := current(t, s, orderPlaced)
	markdown := created.Markdown()
	require.Contains(t, markdown, "<NodeGraph />")

	again := event("OrderPlaced", "1", true)
	again.SourceFields["name"] = "Order Placed"
	res = run(t, r, again)

	out := res.ByKey(orderPlaced)
	require.Len(t, out, 1)
	assert.Equal(t, reconciler.ActionUpdate, out[0].Action)
	assert.Contains(t, out[0].Changes, "fields.name")

	got := current(t, s, orderPlaced)
	assert.Equal(t, "1", got.Version)
	assert.Equal(t, markdown, got.Markdown())
	assert.Equal(t, "Order Placed", got.SourceFields["name"])
	assert.Empty(t, archived(t, s, orderPlaced))
	assert.Equal(t, created.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestSupersede(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	run(t, r, event("OrderPlaced", "1", true))
	res := run(t, r, event("OrderPlaced", "2", true))

	out := res.ByKey(orderPlaced)
	require.Len(t, out, 1)
	assert.Equal(t, reconciler.ActionSupersede, out[0].Action)
	assert.Equal(t, "1", out[0].PreviousVersion)

	assert.Equal(t, "2", current(t, s, orderPlaced).Version)
	assert.Equal(t, []string{"1"}, archived(t, s, orderPlaced))

	snap, err := s.Get(context.Background(), orderPlaced, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", snap.Version)
	assert.Contains(t, snap.Files, "schema.json")
}

func TestSendsMerge(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)
	key := catalogs.Key{Kind: catalogs.KindService, ID: "Orders"}

	first := service("Orders", "1", true)
	first.Relationships.Sends = []catalogs.Ref{{ID: "A", Version: "1"}}
	run(t, r, first)

	second := service("Orders", "1", true)
	second.Relationships.Sends = []catalogs.Ref{{ID: "A", Version: "2"}, {ID: "B", Version: "1"}}
	run(t, r, second)

	assert.Equal(t, []catalogs.Ref{{ID: "A", Version: "1"}, {ID: "B", Version: "1"}},
		current(t, s, key).Relationships.Sends)
}

func TestOutOfOrderInOneBatch(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	res := run(t, r,
		event("OrderPlaced", "2", false),
		event("OrderPlaced", "1", false),
		event("OrderPlaced", "3", true),
	)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, []reconciler.Action{
		reconciler.ActionCreate,
		reconciler.ActionArchiveWrite,
		reconciler.ActionSupersede,
	}, actions(res, orderPlaced))

	assert.Equal(t, "3", current(t, s, orderPlaced).Version)
	assert.Equal(t, []string{"1", "2"}, archived(t, s, orderPlaced))
}

func TestOutOfOrderAcrossRuns(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	run(t, r, event("OrderPlaced", "2", true))
	res := run(t, r, event("OrderPlaced", "1", true))
	assert.Equal(t, []reconciler.Action{reconciler.ActionArchiveWrite}, actions(res, orderPlaced))
	run(t, r, event("OrderPlaced", "3", true))

	assert.Equal(t, "3", current(t, s, orderPlaced).Version)
	assert.Equal(t, []string{"1", "2"}, archived(t, s, orderPlaced))
}

func TestIdempotentRerun(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	orders := service("Orders", "1", true)
	orders.Relationships.Sends = []catalogs.Ref{{ID: "OrderPlaced", Version: "3"}}
	orders.Relationships.Domain = &catalogs.Ref{ID: "Sales"}
	orders.SourceFields["specifications"] = map[string]any{"openapiPath": "openapi.yml"}
	batch := []catalogs.Revision{
		event("OrderPlaced", "1", false),
		event("OrderPlaced", "2", false),
		event("OrderPlaced", "3", true),
		orders,
	}

	first := run(t, r, batch...)
	require.True(t, first.IsSuccess())
	before := tree(t, s.Root())

	second := run(t, r, batch...)
	require.True(t, second.IsSuccess())
	assert.False(t, second.HasChanges(), second.Summary())
	for _, o := range second.Outcomes {
		assert.Equal(t, reconciler.ActionSkip, o.Action, "%s@%s", o.Key, o.Version)
	}
	assert.Equal(t, before, tree(t, s.Root()))
}

func TestNonLatestDuplicateIsNoop(t *testing.T) {
	s := store.NewMemory(nil)
	r := newReconciler(t, s)

	run(t, r, event("OrderPlaced", "2", true))
	run(t, r, event("OrderPlaced", "1", false))

	changed := event("OrderPlaced", "1", false)
	changed.SourceFields["name"] = "different"
	res := run(t, r, changed)

	out := res.ByKey(orderPlaced)
	require.Len(t, out, 1)
	assert.Equal(t, reconciler.ActionSkip, out[0].Action)
	assert.Equal(t, reconciler.ReasonDuplicate, out[0].Reason)
}

func TestUserFieldsPreserved(t *testing.T) {
	ctx := context.Background()
	s := newFS(t)
	r := newReconciler(t, s)

	run(t, r, event("OrderPlaced", "1", true))
	e := current(t, s, orderPlaced)
	e.UserFields["markdown"] = "Hand written docs."
	e.UserFields["owners"] = []any{"checkout-team"}
	require.NoError(t, s.Put(ctx, e, catalogs.PutOptions{OverwriteCurrent: true}))

	update := event("OrderPlaced", "1", true)
	update.SourceFields["markdown"] = "source tried to replace this"
	update.SourceFields["schemaPath"] = "schema-v1.json"
	run(t, r, update)
	assert.Equal(t, "Hand written docs.", current(t, s, orderPlaced).Markdown())

	run(t, r, event("OrderPlaced", "2", true))
	got := current(t, s, orderPlaced)
	assert.Equal(t, "2", got.Version)
	assert.Equal(t, "Hand written docs.", got.Markdown())
	assert.Equal(t, []any{"checkout-team"}, got.UserFields["owners"])
}

func TestFailureIsolation(t *testing.T) {
	s := &faultyStore{Store: store.NewMemory(nil), failPut: map[string]bool{"Broken": true}}
	r := newReconciler(t, s)

	res := run(t, r, event("Broken", "1", true), event("Fine", "1", true))
	assert.False(t, res.IsSuccess())
	require.Len(t, res.Failures(), 1)

	failure := res.Failures()[0]
	assert.Equal(t, "Broken", failure.Key.ID)
	assert.Equal(t, "io", failure.ErrorKind)
	var entErr *pkgerrors.EntityError
	require.ErrorAs(t, failure.Err, &entErr)

	fine := catalogs.Key{Kind: catalogs.KindMessage, MessageType: catalogs.MessageEvent, ID: "Fine"}
	assert.Equal(t, []reconciler.Action{reconciler.ActionCreate}, actions(res, fine))
	assert.Equal(t, 1, res.Metadata.Stats.Failed)
	assert.Equal(t, 1, res.Metadata.Stats.Created)
	assert.Contains(t, res.Summary(), "failed for 1 of 2 revisions")
}

func TestPartialWriteRecovery(t *testing.T) {
	mem := store.NewMemory(nil)
	s := &faultyStore{Store: mem, failPut: map[string]bool{}}
	r := newReconciler(t, s)

	run(t, r, event("OrderPlaced", "1", true))

	s.failPut["OrderPlaced"] = true
	res := run(t, r, event("OrderPlaced", "2", true))
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "partial_write", res.Failures()[0].ErrorKind)
	assert.True(t, pkgerrors.IsPartialWrite(res.Failures()[0].Err))

	_, err := mem.Get(context.Background(), orderPlaced, "latest")
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, []string{"1"}, archived(t, mem, orderPlaced))

	delete(s.failPut, "OrderPlaced")
	res = run(t, r, event("OrderPlaced", "2", true))
	require.True(t, res.IsSuccess())
	out := res.ByKey(orderPlaced)
	require.Len(t, out, 2)
	assert.Equal(t, reconciler.ReasonRepaired, out[0].Reason)
	assert.Equal(t, "1", out[0].Version)
	assert.Equal(t, reconciler.ActionSupersede, out[1].Action)
	assert.Equal(t, 1, res.Metadata.Stats.Repaired)

	assert.Equal(t, "2", current(t, mem, orderPlaced).Version)
	assert.Equal(t, []string{"1"}, archived(t, mem, orderPlaced))
}

func TestMissingCurrentWithoutAutoRepair(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(nil)
	r := newReconciler(t, mem, reconciler.WithAutoRepair(false))
	run(t, r, event("OrderPlaced", "1", true))
	require.NoError(t, mem.Archive(ctx, orderPlaced, "1"))

	res := run(t, r, event("OrderPlaced", "2", true))
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "partial_write", res.Failures()[0].ErrorKind)
}

func TestAmbiguousVersions(t *testing.T) {
	s := store.NewMemory(nil)
	r := newReconciler(t, s)

	res := run(t, r,
		event("OrderPlaced", "alpha", true),
		event("OrderPlaced", "beta", true),
		event("Other", "1", true),
	)
	out := res.ByKey(orderPlaced)
	require.Len(t, out, 2)
	assert.Equal(t, reconciler.ActionCreate, out[0].Action)
	assert.Equal(t, "ambiguous_version_order", out[1].ErrorKind)
	assert.True(t, pkgerrors.IsAmbiguousVersionOrder(out[1].Err))
	assert.Equal(t, "alpha", current(t, s, orderPlaced).Version)

	other := catalogs.Key{Kind: catalogs.KindMessage, MessageType: catalogs.MessageEvent, ID: "Other"}
	assert.Equal(t, "1", current(t, s, other).Version)
}

func TestSequenceHints(t *testing.T) {
	s := store.NewMemory(nil)
	r := newReconciler(t, s)

	seq := func(rev catalogs.Revision, n int64) catalogs.Revision {
		rev.Sequence = &n
		return rev
	}
	res := run(t, r,
		seq(event("OrderPlaced", "beta", true), 2),
		seq(event("OrderPlaced", "alpha", false), 1),
	)
	require.True(t, res.IsSuccess())
	assert.Equal(t, "beta", current(t, s, orderPlaced).Version)
	assert.Equal(t, []string{"alpha"}, archived(t, s, orderPlaced))
}

func TestGeneratorOptions(t *testing.T) {
	t.Run("exclude non-latest", func(t *testing.T) {
		s := store.NewMemory(nil)
		cfg := reconciler.DefaultGeneratorConfig("asyncapi")
		cfg.IncludeAllVersions = false
		r := newReconciler(t, s, reconciler.WithGenerator(cfg))

		res := run(t, r, event("OrderPlaced", "1", false), event("OrderPlaced", "2", true))
		out := res.ByKey(orderPlaced)
		require.Len(t, out, 2)
		assert.Equal(t, reconciler.ReasonExcluded, out[0].Reason)
		assert.Equal(t, reconciler.ActionCreate, out[1].Action)
		assert.Empty(t, archived(t, s, orderPlaced))
		assert.Equal(t, "asyncapi", res.Metadata.Generator)
	})

	t.Run("replace messages on supersede", func(t *testing.T) {
		s := store.NewMemory(nil)
		cfg := reconciler.DefaultGeneratorConfig("openapi")
		cfg.PreserveExistingMessages = false
		r := newReconciler(t, s, reconciler.WithGenerator(cfg))
		key := catalogs.Key{Kind: catalogs.KindService, ID: "Orders"}

		v1 := service("Orders", "1", true)
		v1.Relationships.Sends = []catalogs.Ref{{ID: "A"}}
		v2 := service("Orders", "2", true)
		v2.Relationships.Sends = []catalogs.Ref{{ID: "B"}}
		run(t, r, v1)
		run(t, r, v2)

		assert.Equal(t, []catalogs.Ref{{ID: "B"}}, current(t, s, key).Relationships.Sends)
		snap, err := s.Get(context.Background(), key, "1")
		require.NoError(t, err)
		assert.Equal(t, []catalogs.Ref{{ID: "A"}}, snap.Relationships.Sends)
	})

	t.Run("forward only", func(t *testing.T) {
		s := store.NewMemory(nil)
		cfg := reconciler.DefaultGeneratorConfig("glue")
		cfg.ForwardOnly = true
		r := newReconciler(t, s, reconciler.WithGenerator(cfg))

		run(t, r, event("OrderPlaced", "1", false), event("OrderPlaced", "2", false))
		assert.Equal(t, "2", current(t, s, orderPlaced).Version)
		assert.Equal(t, []string{"1"}, archived(t, s, orderPlaced))
	})

	t.Run("summary override", func(t *testing.T) {
		s := store.NewMemory(nil)
		cfg := reconciler.DefaultGeneratorConfig("eventbridge")
		cfg.Summary = "Imported from EventBridge"
		r := newReconciler(t, s, reconciler.WithGenerator(cfg))

		rev := event("OrderPlaced", "1", true)
		rev.Overrides = catalogs.Fields{"owners": []string{"team"}}
		run(t, r, rev)
		got := current(t, s, orderPlaced)
		assert.Equal(t, "Imported from EventBridge", got.UserFields["summary"])
		assert.Equal(t, []any{"team"}, got.UserFields["owners"])
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := reconciler.New(store.NewMemory(nil), reconciler.WithConcurrency(0))
		assert.True(t, pkgerrors.IsValidationError(err))
		_, err = reconciler.New(nil)
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestInvalidRevision(t *testing.T) {
	r := newReconciler(t, store.NewMemory(nil))
	res := run(t, r, event("../escape", "1", true), event("OrderPlaced", "1", true))

	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "invalid", res.Failures()[0].ErrorKind)
	assert.Equal(t, []reconciler.Action{reconciler.ActionCreate}, actions(res, orderPlaced))
}

func TestNestedService(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	rev := service("Orders", "1", true)
	rev.Relationships.Domain = &catalogs.Ref{ID: "Sales"}
	domain := catalogs.Revision{ID: "Sales", Kind: catalogs.KindDomain, Version: "1", IsLatest: true,
		Relationships: catalogs.Relationships{Services: []catalogs.Ref{{ID: "Orders"}}}}
	res := run(t, r, rev, domain)
	require.True(t, res.IsSuccess())

	assert.FileExists(t, filepath.Join(s.Root(), "domains", "Sales", "services", "Orders", "index.md"))
	assert.FileExists(t, filepath.Join(s.Root(), "domains", "Sales", "index.md"))

	run(t, r, service("Orders", "2", true))
	assert.DirExists(t, filepath.Join(s.Root(), "domains", "Sales", "services", "Orders", "versioned", "1"))
}

func TestServiceJoinsParentDomain(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)
	sales := catalogs.Key{Kind: catalogs.KindDomain, ID: "Sales"}
	domain := catalogs.Revision{ID: "Sales", Kind: catalogs.KindDomain, Version: "1", IsLatest: true,
		SourceFields: catalogs.Fields{"name": "Sales"}}
	run(t, r, domain)

	orders := service("Orders", "1", true)
	orders.Relationships.Domain = &catalogs.Ref{ID: "Sales", Version: "1"}
	res := run(t, r, orders)
	require.True(t, res.IsSuccess())
	assert.Equal(t, 1, res.Metadata.Stats.Linked)
	linked := res.ByKey(sales)
	require.Len(t, linked, 1)
	assert.Equal(t, reconciler.ReasonLinked, linked[0].Reason)
	assert.Contains(t, linked[0].Changes, "relationships.services")

	got := current(t, s, sales)
	assert.Equal(t, []catalogs.Ref{{ID: "Orders", Version: "1"}}, got.Relationships.Services)
	assert.Equal(t, "Sales", got.SourceFields["name"])

	// A rerun and a newer service version leave the membership alone.
	res = run(t, r, orders, service("Orders", "2", true))
	require.True(t, res.IsSuccess())
	assert.Empty(t, res.ByKey(sales))
	assert.Equal(t, []catalogs.Ref{{ID: "Orders", Version: "1"}}, current(t, s, sales).Relationships.Services)
}

func TestServiceWithMissingDomainWarns(t *testing.T) {
	s := store.NewMemory(nil)
	r := newReconciler(t, s)

	orders := service("Orders", "1", true)
	orders.Relationships.Domain = &catalogs.Ref{ID: "Sales"}
	res := run(t, r, orders)
	require.True(t, res.IsSuccess())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "domain Sales")
	assert.Equal(t, 0, res.Metadata.Stats.Linked)
}

func TestDroppedSourceFieldOnDisk(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s)

	first := event("OrderPlaced", "1", true)
	first.SourceFields["deprecated"] = true
	run(t, r, first)

	second := event("OrderPlaced", "1", true)
	second.SourceFields["versionNote"] = "renamed"
	res := run(t, r, second)
	assert.Equal(t, []reconciler.Action{reconciler.ActionUpdate}, actions(res, orderPlaced))

	got := current(t, s, orderPlaced)
	assert.NotContains(t, got.SourceFields, "deprecated")
	assert.NotContains(t, got.UserFields, "deprecated")
	assert.Equal(t, "renamed", got.SourceFields["versionNote"])
	assert.NotContains(t, got.UserFields, "versionNote")
}

func TestDryRun(t *testing.T) {
	root := t.TempDir()
	base, err := store.NewFS(root, store.WithReadOnly())
	require.NoError(t, err)
	r := newReconciler(t, store.NewMemory(base), reconciler.WithDryRun(true))

	res := run(t, r, event("OrderPlaced", "1", true), event("OrderPlaced", "2", true))
	require.True(t, res.IsSuccess())
	assert.True(t, res.Metadata.DryRun)
	assert.Equal(t, 1, res.Metadata.Stats.Created)
	assert.Equal(t, 1, res.Metadata.Stats.Superseded)
	assert.Contains(t, res.Summary(), "Dry run")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCanceledBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newReconciler(t, store.NewMemory(nil))
	res, err := r.Reconcile(ctx, []catalogs.Revision{event("OrderPlaced", "1", true)})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrCanceled)
	require.NotNil(t, res)
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "canceled", res.Failures()[0].ErrorKind)
}

func TestProvenanceAndWarnings(t *testing.T) {
	r := newReconciler(t, store.NewMemory(nil))
	rev := event("OrderPlaced", "1", true)
	rev.Warnings = []error{pkgerrors.NewEnrichmentError("manifest", "OrderPlaced", "tags", pkgerrors.New("denied"))}

	res := run(t, r, rev)
	require.True(t, res.IsSuccess(), "warnings do not fail the entity")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "tags")

	history := res.Provenance["message/event:OrderPlaced:name"]
	require.Len(t, history, 1)
	assert.Equal(t, "manifest", history[0].Source)
	assert.Equal(t, "1", history[0].Version)
	assert.Equal(t, "create", history[0].Action)
}

func TestManyEntitiesInParallel(t *testing.T) {
	s := newFS(t)
	r := newReconciler(t, s, reconciler.WithConcurrency(4))

	var batch []catalogs.Revision
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("Event%02d", i)
		batch = append(batch, event(id, "3", true), event(id, "1", false), event(id, "2", false))
	}
	res := run(t, r, batch...)
	require.True(t, res.IsSuccess())
	assert.Equal(t, 25, res.Metadata.Stats.Entities)

	for i := 0; i < 25; i++ {
		key := catalogs.Key{Kind: catalogs.KindMessage, MessageType: catalogs.MessageEvent, ID: fmt.Sprintf("Event%02d", i)}
		assert.Equal(t, "3", current(t, s, key).Version)
		assert.Equal(t, []string{"1", "2"}, archived(t, s, key))
	}
}

func TestLogsFailures(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	s := &faultyStore{Store: store.NewMemory(nil), failPut: map[string]bool{"OrderPlaced": true}}
	r := newReconciler(t, s)
	_, err := r.Reconcile(ctx, []catalogs.Revision{event("OrderPlaced", "1", true)})
	require.NoError(t, err)

	tl.AssertContains(t, "Failed to reconcile revision")
	tl.AssertContains(t, "OrderPlaced")
}
