// Package reconciler merges revisions fetched from external sources into a
// versioned catalog store. For every revision it reads the current state,
// resolves the version relationship, applies field ownership and
// relationship merging, and performs a single store mutation. Revisions of
// one id are processed in version order on one goroutine; distinct ids run
// in parallel.
package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/logging"
	"github.com/agentstation/catalogsync/pkg/provenance"
	"github.com/agentstation/catalogsync/pkg/store"
	"github.com/agentstation/catalogsync/pkg/versions"
)

// Reconciler is the main interface for synchronizing revisions into a catalog.
type Reconciler interface {
	// Reconcile processes a batch of revisions. Per-revision failures are
	// collected in the result and never stop the batch. The returned error
	// is non-nil only when the batch was cancelled.
	Reconcile(ctx context.Context, revs []catalogs.Revision) (*Result, error)

	// Repair restores the newest archived snapshot as current for every id
	// left with archived snapshots but no current revision.
	Repair(ctx context.Context) (*Result, error)

	// Verify checks the catalog invariants and reports violations.
	Verify(ctx context.Context) (*VerifyReport, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	store  catalogs.Store
	opts   *options
	merger *merger
}

// New creates a Reconciler over store.
func New(s catalogs.Store, opts ...Option) (Reconciler, error) {
	if s == nil {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}
	options, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{
		store:  s,
		opts:   options,
		merger: newMerger(options.policy),
	}, nil
}

// batch is the per-run state shared by the workers.
type batch struct {
	mu      sync.Mutex
	result  *Result
	tracker provenance.Tracker
	members map[string][]catalogs.Ref // domain id -> services written under it
}

func (b *batch) record(outcomes []Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range outcomes {
		b.result.add(o)
	}
}

// member records that a service revision names domainID as its parent.
func (b *batch) member(domainID string, service catalogs.Ref) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.members == nil {
		b.members = make(map[string][]catalogs.Ref)
	}
	b.members[domainID] = append(b.members[domainID], service)
}

// Reconcile implements Reconciler.
func (r *reconciler) Reconcile(ctx context.Context, revs []catalogs.Revision) (*Result, error) {
	ctx = logging.WithOperation(ctx, "reconcile")
	if r.opts.generator.Name != "" {
		ctx = logging.WithField(ctx, "generator", r.opts.generator.Name)
	}
	logger := logging.FromContext(ctx)

	b := &batch{result: NewResult(), tracker: provenance.NewTracker(r.opts.tracking)}
	b.result.Metadata.DryRun = r.opts.dryRun
	b.result.Metadata.Generator = r.opts.generator.Name

	groups, keys := r.group(logger, revs, b.result)
	logger.Debug().
		Int("revisions", len(revs)).
		Int("entities", len(keys)).
		Int("concurrency", r.opts.concurrency).
		Msg("Starting reconciliation")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for _, key := range keys {
		group := groups[key]
		g.Go(func() error {
			b.record(r.reconcileKey(gctx, key, group, b))
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		r.linkServices(ctx, b)
	}

	b.result.Provenance = b.tracker.Map()
	b.result.Finalize()

	stats := b.result.Metadata.Stats
	logger.Info().
		Int("entities", stats.Entities).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("superseded", stats.Superseded).
		Int("archived", stats.ArchiveWrite).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", b.result.Metadata.Duration).
		Bool("dry_run", r.opts.dryRun).
		Msg("Reconciliation finished")

	if err := ctx.Err(); err != nil {
		return b.result, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return b.result, nil
}

// linkServices adds every service written to the current catalog to the
// services of its parent domain. It runs after the per-id workers so no
// domain is written by two goroutines. A parent domain missing from the
// catalog is reported as a warning.
func (r *reconciler) linkServices(ctx context.Context, b *batch) {
	ids := make([]string, 0, len(b.members))
	for id := range b.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		key := catalogs.Key{Kind: catalogs.KindDomain, ID: id}
		logger := logging.FromContext(logging.WithEntity(ctx, key.Resource(), id))

		domain, err := r.store.Get(ctx, key, constants.LatestVersion)
		if errors.IsNotFound(err) {
			for _, svc := range b.members[id] {
				msg := fmt.Sprintf("service %s names domain %s, which is not in the catalog", svc.ID, id)
				logger.Warn().Str("service", svc.ID).Msg("Parent domain not found")
				b.result.Warnings = append(b.result.Warnings, msg)
			}
			continue
		}
		if err != nil {
			b.result.add(Outcome{Key: key, Reason: ReasonLinked, Err: errors.WrapEntity(key.Resource(), id, "", err)})
			continue
		}

		services := AddRefs(domain.Relationships.Services, b.members[id]...)
		if len(services) == len(domain.Relationships.Services) {
			continue
		}
		updated := domain.Clone()
		updated.Relationships.Services = services
		updated.UpdatedAt = r.opts.now()
		outcome := Outcome{
			Key:             key,
			Version:         domain.Version,
			Action:          ActionUpdate,
			Reason:          ReasonLinked,
			PreviousVersion: domain.Version,
			Changes:         r.opts.differ.Entities(domain, updated).Paths(),
		}
		if err := r.store.Put(ctx, updated, catalogs.PutOptions{OverwriteCurrent: true}); err != nil {
			outcome.Err = errors.WrapEntity(key.Resource(), id, domain.Version, err)
			logger.Error().Err(err).Msg("Failed to add services to domain")
		} else {
			logger.Debug().Int("services", len(services)).Msg("Linked services to domain")
		}
		b.result.add(outcome)
	}
}

// parentDomain returns the parent domain of a service revision that now
// stands as the current revision, or nil.
func parentDomain(key catalogs.Key, written, stored *catalogs.Entity, outcome *Outcome) *catalogs.Ref {
	if key.Kind != catalogs.KindService || outcome.Err != nil {
		return nil
	}
	switch {
	case written != nil && outcome.Action != ActionArchiveWrite:
		return written.Relationships.Domain
	case outcome.Reason == ReasonUnchanged && stored != nil:
		return stored.Relationships.Domain
	}
	return nil
}

// group validates revisions and groups them by key in first-seen order.
// Invalid revisions are recorded as failures immediately.
func (r *reconciler) group(logger *zerolog.Logger, revs []catalogs.Revision, result *Result) (map[catalogs.Key][]*catalogs.Revision, []catalogs.Key) {
	groups := make(map[catalogs.Key][]*catalogs.Revision)
	var keys []catalogs.Key
	for i := range revs {
		rev := &revs[i]
		for _, w := range rev.Warnings {
			logger.Warn().Err(w).Str("entity_id", rev.ID).Str("version", rev.Version).Msg("Enrichment unavailable")
			result.Warnings = append(result.Warnings, w.Error())
		}
		if err := rev.Validate(); err != nil {
			result.add(Outcome{
				Key:     rev.Key(),
				Version: rev.Version,
				Source:  rev.Source,
				Err:     errors.WrapEntity(string(rev.Kind), rev.ID, rev.Version, err),
			})
			continue
		}
		key := rev.Key()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], rev)
	}
	return groups, keys
}

// reconcileKey processes every revision of one id in version order.
func (r *reconciler) reconcileKey(ctx context.Context, key catalogs.Key, revs []*catalogs.Revision, b *batch) []Outcome {
	ctx = logging.WithEntity(ctx, key.Resource(), key.ID)
	logger := logging.FromContext(ctx)
	var outcomes []Outcome

	stored, _, repaired, err := r.fetch(ctx, key)
	if repaired != nil {
		outcomes = append(outcomes, *repaired)
	}
	if err != nil {
		for _, rev := range revs {
			outcomes = append(outcomes, r.failed(rev, err))
		}
		return outcomes
	}

	order := r.order(logger, key, revs, stored)
	for i, rev := range revs {
		if err := ctx.Err(); err != nil {
			for _, rest := range revs[i:] {
				outcomes = append(outcomes, r.failed(rest, fmt.Errorf("%w: %w", errors.ErrCanceled, err)))
			}
			break
		}
		if !r.opts.generator.IncludeAllVersions && !rev.IsLatest {
			outcomes = append(outcomes, Outcome{
				Key:     key,
				Version: rev.Version,
				Source:  rev.Source,
				Action:  ActionSkip,
				Reason:  ReasonExcluded,
			})
			continue
		}
		outcomes = append(outcomes, r.reconcileRevision(ctx, rev, order, b)...)
	}
	return outcomes
}

// order builds the version orderer for key from the stored and incoming
// versions and sorts revs oldest first. Archived versions take no part:
// they are only ever compared for equality. When some pair cannot be
// ordered the source order is kept and the resolver reports the ambiguity
// for the revisions it affects.
func (r *reconciler) order(logger *zerolog.Logger, key catalogs.Key, revs []*catalogs.Revision, stored *catalogs.Entity) *versions.Orderer {
	candidates := make([]versions.Candidate, 0, len(revs)+1)
	if stored != nil {
		candidates = append(candidates, versions.Candidate{Version: stored.Version, Sequence: stored.Sequence})
	}
	for _, rev := range revs {
		candidates = append(candidates, versions.Candidate{Version: rev.Version, Sequence: rev.Sequence})
	}
	order := versions.NewOrderer(key.ID, candidates)

	sorted := append([]*catalogs.Revision(nil), revs...)
	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		c, err := order.Compare(sorted[i].Version, sorted[j].Version)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c < 0
	})
	if sortErr != nil {
		logger.Debug().Err(sortErr).Str("scheme", order.Scheme().String()).Msg("Keeping source order")
		return order
	}
	copy(revs, sorted)
	return order
}

// fetch reads the current revision and archived versions of key. An id
// with archived snapshots but no current revision is repaired first when
// auto repair is enabled.
func (r *reconciler) fetch(ctx context.Context, key catalogs.Key) (*catalogs.Entity, []string, *Outcome, error) {
	stored, archived, err := r.state(ctx, key)
	if err != nil || stored != nil || len(archived) == 0 || !r.opts.repair {
		return stored, archived, nil, err
	}

	version, err := r.restoreNewest(ctx, key, archived)
	if err != nil {
		return nil, nil, nil, err
	}
	repaired := &Outcome{Key: key, Version: version, Reason: ReasonRepaired}
	stored, archived, err = r.state(ctx, key)
	return stored, archived, repaired, err
}

func (r *reconciler) state(ctx context.Context, key catalogs.Key) (*catalogs.Entity, []string, error) {
	stored, err := r.store.Get(ctx, key, constants.LatestVersion)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, nil, err
		}
		stored = nil
	}
	archived, err := r.store.ListArchived(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return stored, archived, nil
}

// reconcileRevision runs FETCH_CURRENT, RESOLVE_VERSION and the resolved
// action for a single revision.
func (r *reconciler) reconcileRevision(ctx context.Context, rev *catalogs.Revision, order *versions.Orderer, b *batch) []Outcome {
	ctx = logging.WithVersion(ctx, rev.Version)
	logger := logging.FromContext(ctx)
	key := rev.Key()
	var outcomes []Outcome

	stored, archived, repaired, err := r.fetch(ctx, key)
	if repaired != nil {
		outcomes = append(outcomes, *repaired)
	}
	if err != nil {
		return append(outcomes, r.failed(rev, err))
	}

	action, err := Resolve(rev, stored, archived, order, r.opts.generator.ForwardOnly)
	if err != nil {
		return append(outcomes, r.failed(rev, err))
	}

	outcome := Outcome{Key: key, Version: rev.Version, Source: rev.Source, Action: action}
	if stored != nil {
		outcome.PreviousVersion = stored.Version
	}

	written, err := r.apply(ctx, rev, stored, &outcome)
	if err != nil {
		outcome.Err = errors.WrapEntity(key.Resource(), key.ID, rev.Version, err)
		logger.Error().Err(err).Str("action", action.String()).Msg("Failed to reconcile revision")
		return append(outcomes, outcome)
	}

	if written != nil {
		b.tracker.TrackFields(key, written.SourceFields, provenance.Provenance{
			Source:   r.sourceName(rev),
			Version:  rev.Version,
			Action:   outcome.Action.String(),
			Archived: outcome.Action == ActionArchiveWrite,
		})
	}
	if parent := parentDomain(key, written, stored, &outcome); parent != nil {
		b.member(parent.ID, catalogs.Ref{ID: rev.ID, Version: rev.Version})
	}
	logger.Debug().
		Str("action", outcome.Action.String()).
		Str("reason", outcome.Reason).
		Str("previous_version", outcome.PreviousVersion).
		Int("changes", len(outcome.Changes)).
		Msg("Reconciled revision")
	return append(outcomes, outcome)
}

// apply performs the store mutation for the resolved action and returns the
// entity written, or nil when nothing was written.
func (r *reconciler) apply(ctx context.Context, rev *catalogs.Revision, stored *catalogs.Entity, outcome *Outcome) (*catalogs.Entity, error) {
	incoming, err := store.Normalize(rev.SourceFields)
	if err != nil {
		return nil, err
	}
	now := r.opts.now()

	switch outcome.Action {
	case ActionCreate:
		e, err := r.created(rev, incoming)
		if err != nil {
			return nil, err
		}
		e.CreatedAt, e.UpdatedAt = now, now
		outcome.Changes = r.opts.differ.Entities(nil, e).Paths()
		return e, r.store.Put(ctx, e, catalogs.PutOptions{})

	case ActionUpdate:
		e := r.carried(rev, stored, incoming, true)
		e.CreatedAt, e.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
		cs := r.opts.differ.Entities(stored, e)
		if !cs.HasChanges() {
			outcome.Action = ActionSkip
			outcome.Reason = ReasonUnchanged
			return nil, nil
		}
		outcome.Changes = cs.Paths()
		e.UpdatedAt = now
		return e, r.store.Put(ctx, e, catalogs.PutOptions{OverwriteCurrent: true})

	case ActionSupersede:
		e := r.carried(rev, stored, incoming, r.opts.generator.PreserveExistingMessages)
		e.CreatedAt, e.UpdatedAt = stored.CreatedAt, now
		outcome.Changes = r.opts.differ.Entities(stored, e).Paths()
		if err := r.store.Archive(ctx, stored.Key(), stored.Version); err != nil {
			return nil, err
		}
		// The archive has moved the current revision; the put must run
		// even if the batch is cancelled in between.
		if err := r.store.Put(context.WithoutCancel(ctx), e, catalogs.PutOptions{}); err != nil {
			return nil, errors.NewPartialWriteError(rev.Key().Resource(), rev.ID, stored.Version, err)
		}
		return e, nil

	case ActionArchiveWrite:
		user, source := r.merger.carry(stored, incoming)
		e := &catalogs.Entity{
			ID:            rev.ID,
			Kind:          rev.Kind,
			MessageType:   rev.MessageType,
			Version:       rev.Version,
			Sequence:      cloneSequence(rev.Sequence),
			UserFields:    user,
			SourceFields:  source,
			Relationships: MergeRelationships(catalogs.Relationships{}, rev.Relationships, true),
			Files:         catalogs.CloneFiles(rev.Files),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return e, r.store.PutArchived(ctx, e)

	default:
		outcome.Reason = ReasonDuplicate
		return nil, nil
	}
}

// created builds the first revision of an entity.
func (r *reconciler) created(rev *catalogs.Revision, incoming catalogs.Fields) (*catalogs.Entity, error) {
	overrides, err := store.Normalize(rev.Overrides)
	if err != nil {
		return nil, err
	}
	defaults := r.opts.renderer.Render(rev)
	user, source := r.merger.create(rev, defaults, incoming, overrides, r.opts.generator.Summary)
	if user, err = store.Normalize(user); err != nil {
		return nil, err
	}
	return &catalogs.Entity{
		ID:            rev.ID,
		Kind:          rev.Kind,
		MessageType:   rev.MessageType,
		Version:       rev.Version,
		Sequence:      cloneSequence(rev.Sequence),
		UserFields:    user,
		SourceFields:  source,
		Relationships: MergeRelationships(catalogs.Relationships{}, rev.Relationships, true),
		Files:         catalogs.CloneFiles(rev.Files),
	}, nil
}

// carried builds the next current revision from the stored one.
func (r *reconciler) carried(rev *catalogs.Revision, stored *catalogs.Entity, incoming catalogs.Fields, preserveMessages bool) *catalogs.Entity {
	user, source := r.merger.carry(stored, incoming)
	seq := cloneSequence(rev.Sequence)
	if seq == nil && stored.Version == rev.Version {
		seq = cloneSequence(stored.Sequence)
	}
	return &catalogs.Entity{
		ID:            rev.ID,
		Kind:          rev.Kind,
		MessageType:   rev.MessageType,
		Version:       rev.Version,
		Sequence:      seq,
		UserFields:    user,
		SourceFields:  source,
		Relationships: MergeRelationships(stored.Relationships, rev.Relationships, preserveMessages),
		Files:         mergeFiles(stored.Files, rev.Files),
	}
}

func (r *reconciler) failed(rev *catalogs.Revision, err error) Outcome {
	return Outcome{
		Key:     rev.Key(),
		Version: rev.Version,
		Source:  rev.Source,
		Err:     errors.WrapEntity(rev.Key().Resource(), rev.ID, rev.Version, err),
	}
}

func (r *reconciler) sourceName(rev *catalogs.Revision) string {
	if rev.Source != "" {
		return rev.Source
	}
	return r.opts.generator.Name
}

func cloneSequence(seq *int64) *int64 {
	if seq == nil {
		return nil
	}
	v := *seq
	return &v
}
