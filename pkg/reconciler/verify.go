package reconciler

import (
	"context"
	"fmt"
	"slices"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/logging"
)

// Problems reported by Verify.
const (
	ProblemMissingCurrent   = "missing_current"   // archived snapshots without a current revision
	ProblemCurrentArchived  = "current_archived"  // archive holds the current version
	ProblemUnreadable       = "unreadable"        // a snapshot cannot be read
	ProblemPendingOperation = "pending_operation" // an interrupted archive or restore is still on disk
)

// Violation is one broken invariant.
type Violation struct {
	Key     catalogs.Key `json:"key" yaml:"key"`
	Version string       `json:"version,omitempty" yaml:"version,omitempty"`
	Problem string       `json:"problem" yaml:"problem"`
	Detail  string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// VerifyReport lists the violations found by Verify.
type VerifyReport struct {
	Entities   int         `json:"entities" yaml:"entities"`
	Snapshots  int         `json:"snapshots" yaml:"snapshots"`
	Violations []Violation `json:"violations" yaml:"violations"`
}

// OK reports whether no violation was found.
func (v *VerifyReport) OK() bool {
	return len(v.Violations) == 0
}

// Summary returns a human-readable summary of the report.
func (v *VerifyReport) Summary() string {
	if v.OK() {
		return fmt.Sprintf("Catalog is consistent: %d entities, %d snapshots", v.Entities, v.Snapshots)
	}
	return fmt.Sprintf("Found %d violations in %d entities", len(v.Violations), v.Entities)
}

// pendingLister is implemented by stores that can report interrupted
// operations left on disk.
type pendingLister interface {
	Pending(key catalogs.Key) ([]string, error)
}

// Verify implements Reconciler.
func (r *reconciler) Verify(ctx context.Context) (*VerifyReport, error) {
	ctx = logging.WithOperation(ctx, "verify")
	keys, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{Violations: []Violation{}}
	flag := func(key catalogs.Key, version, problem string, err error) {
		v := Violation{Key: key, Version: version, Problem: problem}
		if err != nil {
			v.Detail = err.Error()
		}
		report.Violations = append(report.Violations, v)
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
		}
		report.Entities++

		if pl, ok := r.store.(pendingLister); ok {
			pending, err := pl.Pending(key)
			if err != nil {
				return nil, err
			}
			for _, p := range pending {
				flag(key, "", ProblemPendingOperation, fmt.Errorf("leftover %s", p))
			}
		}

		current, err := r.store.Get(ctx, key, constants.LatestVersion)
		switch {
		case errors.IsNotFound(err):
			current = nil
		case err != nil:
			flag(key, constants.LatestVersion, ProblemUnreadable, err)
			current = nil
		default:
			report.Snapshots++
		}

		archived, err := r.store.ListArchived(ctx, key)
		if err != nil {
			return nil, err
		}
		if current == nil && len(archived) > 0 {
			flag(key, "", ProblemMissingCurrent, fmt.Errorf("%d archived snapshots", len(archived)))
		}
		if current != nil && slices.Contains(archived, current.Version) {
			flag(key, current.Version, ProblemCurrentArchived, nil)
		}
		for _, v := range archived {
			if _, err := r.store.Get(ctx, key, v); err != nil {
				flag(key, v, ProblemUnreadable, err)
				continue
			}
			report.Snapshots++
		}
	}

	logging.FromContext(ctx).Info().
		Int("entities", report.Entities).
		Int("violations", len(report.Violations)).
		Msg("Verify finished")
	return report, nil
}
