// Package constants provides shared constants used throughout the catalogsync
// codebase: file permissions, on-disk layout names, and concurrency limits
// that must stay consistent between the store, the reconciler and the CLI.
package constants

import "time"

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Layout constants name the fixed parts of the on-disk catalog.
const (
	// IndexFile holds an entity's frontmatter and markdown body.
	IndexFile = "index.md"

	// VersionedDir is the per-entity directory holding archived snapshots.
	VersionedDir = "versioned"

	// NestedServicesDir holds services nested under a domain.
	NestedServicesDir = "services"

	// StagingPrefix marks an archive move that has not been committed.
	StagingPrefix = ".staging-"

	// RestorePrefix marks a restore from the archive that has not been committed.
	RestorePrefix = ".restore-"

	// TempSuffix marks a file written but not yet renamed into place.
	TempSuffix = ".tmp"

	// LatestVersion requests the current revision from the store.
	LatestVersion = "latest"
)

// Limit constants
const (
	// DefaultConcurrency is the number of entity ids reconciled in parallel.
	DefaultConcurrency = 8

	// MaxConcurrency caps the configured concurrency.
	MaxConcurrency = 64
)

// Timeout constants
const (
	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute
)
