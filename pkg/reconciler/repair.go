package reconciler

import (
	"context"
	"fmt"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/logging"
	"github.com/agentstation/catalogsync/pkg/versions"
)

// Repair implements Reconciler.
func (r *reconciler) Repair(ctx context.Context) (*Result, error) {
	ctx = logging.WithOperation(ctx, "repair")
	logger := logging.FromContext(ctx)

	result := NewResult()
	result.Metadata.DryRun = r.opts.dryRun
	keys, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			result.Finalize()
			return result, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
		}
		stored, archived, err := r.state(ctx, key)
		if err == nil && (stored != nil || len(archived) == 0) {
			continue
		}
		var version string
		if err == nil {
			version, err = r.restoreNewest(ctx, key, archived)
		}
		if err != nil {
			result.add(Outcome{Key: key, Err: errors.WrapEntity(key.Resource(), key.ID, "", err)})
			continue
		}
		result.add(Outcome{Key: key, Version: version, Reason: ReasonRepaired})
	}

	result.Finalize()
	logger.Info().
		Int("checked", len(keys)).
		Int("repaired", result.Metadata.Stats.Repaired).
		Int("failed", result.Metadata.Stats.Failed).
		Msg("Repair finished")
	return result, nil
}

// restoreNewest makes the newest archived snapshot of key current again.
// Archived snapshots carry their own sequence hints, so ids ordered only
// by sequence can still be repaired.
func (r *reconciler) restoreNewest(ctx context.Context, key catalogs.Key, archived []string) (string, error) {
	candidates := make([]versions.Candidate, 0, len(archived))
	for _, v := range archived {
		snap, err := r.store.Get(ctx, key, v)
		if err != nil {
			return "", err
		}
		candidates = append(candidates, versions.Candidate{Version: v, Sequence: snap.Sequence})
	}
	newest, err := versions.NewOrderer(key.ID, candidates).Newest(archived)
	if err != nil {
		return "", errors.NewPartialWriteError(key.Resource(), key.ID, "", err)
	}
	if err := r.store.Restore(ctx, key, newest); err != nil {
		return "", errors.NewPartialWriteError(key.Resource(), key.ID, newest, err)
	}

	logging.FromContext(ctx).Warn().
		Str("kind", key.Resource()).
		Str("entity_id", key.ID).
		Str("restored_version", newest).
		Int("archived", len(archived)).
		Msg("Restored current revision from archive after an interrupted write")
	return newest, nil
}
