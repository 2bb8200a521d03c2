// Package appcontext provides the shared application context interface
// used by all commands, so command packages depend on an interface rather
// than on the concrete App.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

// Interface defines the application context that commands need.
// The App struct from cmd/catalogsync/app implements it; tests use Mock.
type Interface interface {
	// CatalogSync returns the default instance for the configured catalog
	// root, creating it lazily if needed.
	CatalogSync() (catalogsync.CatalogSync, error)

	// CatalogSyncWithOptions creates a new instance from the configured
	// options followed by opts. Later options win.
	CatalogSyncWithOptions(opts ...catalogsync.Option) (catalogsync.CatalogSync, error)

	// Generator returns the configured options for the named generator,
	// or its defaults when none are configured.
	Generator(name string) reconciler.GeneratorConfig

	// ProvenanceFile returns the configured provenance file, if any.
	ProvenanceFile() string

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
