package catalogs

import "context"

// PutOptions controls how a current revision is written.
type PutOptions struct {
	// OverwriteCurrent allows replacing a current revision at a different
	// version. Without it such a put fails with a ConflictError.
	OverwriteCurrent bool
}

// Store is the versioned entity repository. A store holds at most one
// current revision per key plus an archive of immutable snapshots, and
// never holds the current version inside the archive.
type Store interface {
	// Get returns the current revision (version "latest" or "") or the
	// archived snapshot at version. Missing entries yield a NotFoundError.
	Get(ctx context.Context, key Key, version string) (*Entity, error)

	// Put writes entity as the current revision.
	Put(ctx context.Context, entity *Entity, opts PutOptions) error

	// Archive moves the current revision into the archive slot for version,
	// leaving no current revision.
	Archive(ctx context.Context, key Key, version string) error

	// PutArchived writes entity directly into its archive slot without
	// touching the current revision. Occupied slots yield a ConflictError.
	PutArchived(ctx context.Context, entity *Entity) error

	// ListArchived returns the archived versions of key in no particular order.
	ListArchived(ctx context.Context, key Key) ([]string, error)

	// Restore moves the archived snapshot at version back to current.
	// It fails with a ConflictError when a current revision exists.
	Restore(ctx context.Context, key Key, version string) error

	// List returns the keys of every entity with a current revision or archive.
	List(ctx context.Context) ([]Key, error)
}
