package catalogsync

import (
	"context"
	"time"

	"github.com/agentstation/catalogsync/pkg/logging"
	"github.com/agentstation/catalogsync/pkg/reconciler"
	"github.com/agentstation/catalogsync/pkg/sources"
)

// Sync fetches every source and reconciles the revisions they produce.
func (cs *catalogSync) Sync(ctx context.Context, srcs ...sources.Source) (*reconciler.Result, error) {
	ctx = cs.context(ctx)
	ctx = logging.WithOperation(ctx, "sync")

	if cs.config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.config.timeout)
		defer cancel()
	}

	start := time.Now()
	revs, err := sources.Collect(ctx, srcs...)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Int("sources", len(srcs)).
		Int("revisions", len(revs)).
		Dur("fetch_time", time.Since(start)).
		Msg("Fetched revisions")

	return cs.Reconcile(ctx, revs)
}
