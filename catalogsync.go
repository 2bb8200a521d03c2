// Package catalogsync keeps an event catalog in step with the systems it
// describes. Sources produce revisions of domains, services, channels and
// messages; the reconciler merges them into a versioned on-disk catalog
// while preserving everything a human has edited by hand.
//
// Example usage:
//
//	cs, err := catalogsync.New(catalogsync.WithRoot("./catalog"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := cs.Sync(ctx, manifest.New(manifest.WithPaths("asyncapi.yaml")))
package catalogsync

import (
	"context"
	"sort"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/logging"
	"github.com/agentstation/catalogsync/pkg/provenance"
	"github.com/agentstation/catalogsync/pkg/reconciler"
	"github.com/agentstation/catalogsync/pkg/sources"
	"github.com/agentstation/catalogsync/pkg/store"
	"github.com/agentstation/catalogsync/pkg/versions"
)

// CatalogSync reconciles sources into a catalog and inspects the result.
type CatalogSync interface {
	// Sync fetches every source and reconciles the revisions they produce.
	Sync(ctx context.Context, srcs ...sources.Source) (*reconciler.Result, error)

	// Reconcile merges revisions that were produced elsewhere.
	Reconcile(ctx context.Context, revs []catalogs.Revision) (*reconciler.Result, error)

	// Repair restores a current revision for ids left with only an archive.
	Repair(ctx context.Context) (*reconciler.Result, error)

	// Verify checks the catalog on disk and reports violations.
	Verify(ctx context.Context) (*reconciler.VerifyReport, error)

	// Versions lists the current and archived versions of an entity.
	Versions(ctx context.Context, key catalogs.Key) (*VersionList, error)

	// Show returns the current revision (version "" or "latest") or an
	// archived snapshot.
	Show(ctx context.Context, key catalogs.Key, version string) (*catalogs.Entity, error)

	// OnEntityCreated registers a callback for created entities
	OnEntityCreated(OutcomeHook)

	// OnEntityChanged registers a callback for updated, superseded and back-filled entities
	OnEntityChanged(OutcomeHook)

	// OnEntityFailed registers a callback for revisions that failed
	OnEntityFailed(OutcomeHook)
}

// VersionList is the version history of one entity, oldest first.
type VersionList struct {
	Key      catalogs.Key `json:"key" yaml:"key"`
	Current  string       `json:"current,omitempty" yaml:"current,omitempty"`
	Archived []string     `json:"archived" yaml:"archived"`
	Scheme   string       `json:"scheme" yaml:"scheme"`
}

// catalogSync is the internal implementation of CatalogSync.
type catalogSync struct {
	config     *config
	store      catalogs.Store
	reconciler reconciler.Reconciler
	hooks      *hooks
}

// New creates a new CatalogSync instance with the given options.
func New(opts ...Option) (CatalogSync, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s, err := cfg.newStore()
	if err != nil {
		return nil, err
	}

	rec, err := reconciler.New(s,
		reconciler.WithPolicy(cfg.policy),
		reconciler.WithRenderer(cfg.renderer),
		reconciler.WithGenerator(cfg.generator),
		reconciler.WithConcurrency(cfg.concurrency),
		reconciler.WithDryRun(cfg.dryRun),
	)
	if err != nil {
		return nil, err
	}

	return &catalogSync{
		config:     cfg,
		store:      s,
		reconciler: rec,
		hooks:      newHooks(),
	}, nil
}

// newStore opens the configured store. Dry runs read through to it and
// keep every write in memory.
func (c *config) newStore() (catalogs.Store, error) {
	base := c.store
	if base == nil {
		storeOpts := []store.Option{
			store.WithPolicy(c.policy),
			store.WithNestedServices(c.generator.NestServicesUnderDomain),
		}
		if c.dryRun {
			storeOpts = append(storeOpts, store.WithReadOnly())
		}
		fs, err := store.NewFS(c.root, storeOpts...)
		if err != nil {
			return nil, err
		}
		base = fs
	}
	if c.dryRun {
		return store.NewMemory(base), nil
	}
	return base, nil
}

func (cs *catalogSync) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cs.config.logger != nil {
		ctx = logging.WithLogger(ctx, cs.config.logger)
	}
	return ctx
}

// Reconcile implements CatalogSync.
func (cs *catalogSync) Reconcile(ctx context.Context, revs []catalogs.Revision) (*reconciler.Result, error) {
	ctx = cs.context(ctx)
	result, err := cs.reconciler.Reconcile(ctx, revs)
	if result != nil && !cs.config.dryRun {
		cs.hooks.trigger(result)
	}
	if err != nil {
		return result, err
	}
	if cs.config.provenanceFile != "" && !cs.config.dryRun && len(result.Provenance) > 0 {
		if err := provenance.Save(cs.config.provenanceFile, result.Provenance); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Repair implements CatalogSync.
func (cs *catalogSync) Repair(ctx context.Context) (*reconciler.Result, error) {
	return cs.reconciler.Repair(cs.context(ctx))
}

// Verify implements CatalogSync.
func (cs *catalogSync) Verify(ctx context.Context) (*reconciler.VerifyReport, error) {
	return cs.reconciler.Verify(cs.context(ctx))
}

// Versions implements CatalogSync.
func (cs *catalogSync) Versions(ctx context.Context, key catalogs.Key) (*VersionList, error) {
	ctx = cs.context(ctx)
	list := &VersionList{Key: key, Archived: []string{}}

	var candidates []versions.Candidate
	current, err := cs.store.Get(ctx, key, "")
	switch {
	case err == nil:
		list.Current = current.Version
		candidates = append(candidates, versions.Candidate{Version: current.Version, Sequence: current.Sequence})
	case !errors.IsNotFound(err):
		return nil, err
	}

	archived, err := cs.store.ListArchived(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil && len(archived) == 0 {
		return nil, errors.NewNotFoundError(key.Resource(), key.ID)
	}
	for _, v := range archived {
		snap, err := cs.store.Get(ctx, key, v)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, versions.Candidate{Version: v, Sequence: snap.Sequence})
	}

	order := versions.NewOrderer(key.ID, candidates)
	list.Scheme = order.Scheme().String()
	list.Archived = append(list.Archived, archived...)
	if err := order.Sort(list.Archived); err != nil {
		sort.Strings(list.Archived)
		logging.FromContext(ctx).Debug().Err(err).
			Str("entity_id", key.ID).
			Msg("Versions have no common order, listing them lexically")
	}
	return list, nil
}

// Show implements CatalogSync.
func (cs *catalogSync) Show(ctx context.Context, key catalogs.Key, version string) (*catalogs.Entity, error) {
	return cs.store.Get(cs.context(ctx), key, version)
}
