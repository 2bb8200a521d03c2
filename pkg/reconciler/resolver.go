package reconciler

import (
	"fmt"
	"slices"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/versions"
)

// Action is what the resolver decided to do with one revision.
type Action string

const (
	// ActionCreate writes the first current revision of an id.
	ActionCreate Action = "create"
	// ActionUpdate rewrites the current revision at the same version.
	ActionUpdate Action = "update"
	// ActionSupersede archives the current revision and writes a newer one.
	ActionSupersede Action = "supersede"
	// ActionArchiveWrite writes the revision straight into the archive.
	ActionArchiveWrite Action = "archive_write"
	// ActionSkip performs no mutation.
	ActionSkip Action = "skip"
)

// String returns the action name.
func (a Action) String() string { return string(a) }

// Actions lists every action in report order.
func Actions() []Action {
	return []Action{ActionCreate, ActionUpdate, ActionSupersede, ActionArchiveWrite, ActionSkip}
}

// Resolve decides the action for rev given the stored current revision
// (nil when there is none) and the archived versions of the same id.
//
// The same version as current is an update only when the source flags it
// latest; a version already archived is always a duplicate. Otherwise the
// orderer decides: a newer latest revision supersedes, anything else goes
// straight to the archive.
func Resolve(rev *catalogs.Revision, stored *catalogs.Entity, archived []string, order *versions.Orderer, forwardOnly bool) (Action, error) {
	if stored == nil {
		if slices.Contains(archived, rev.Version) {
			return ActionSkip, nil
		}
		if len(archived) > 0 {
			return "", errors.NewPartialWriteError(rev.Key().Resource(), rev.ID, "",
				fmt.Errorf("no current revision but %d archived snapshots", len(archived)))
		}
		return ActionCreate, nil
	}

	if stored.Version == rev.Version {
		if !rev.IsLatest {
			return ActionSkip, nil
		}
		return ActionUpdate, nil
	}
	if slices.Contains(archived, rev.Version) {
		return ActionSkip, nil
	}

	c, err := order.Compare(rev.Version, stored.Version)
	if err != nil {
		return "", err
	}
	if c > 0 && (rev.IsLatest || forwardOnly) {
		return ActionSupersede, nil
	}
	return ActionArchiveWrite, nil
}
