// Package app provides the application context and dependency management
// for the catalogsync CLI. It centralizes configuration, logging and the
// lifecycle of the catalogsync instance.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

// App represents the catalogsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Lazily created default instance
	mu          sync.RWMutex
	catalogSync catalogsync.CatalogSync
}

// Ensure App implements appcontext.Interface at compile time.
var _ appcontext.Interface = (*App)(nil)

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.NewConfigError("app", "load config", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// ProvenanceFile returns the configured provenance file.
func (a *App) ProvenanceFile() string {
	return a.config.ProvenanceFile
}

// Generator returns the configured options for the named generator.
func (a *App) Generator(name string) reconciler.GeneratorConfig {
	return a.config.Generator(name)
}

// CatalogSync returns the default instance, creating it lazily if needed.
func (a *App) CatalogSync() (catalogsync.CatalogSync, error) {
	a.mu.RLock()
	if a.catalogSync != nil {
		cs := a.catalogSync
		a.mu.RUnlock()
		return cs, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.catalogSync != nil {
		return a.catalogSync, nil
	}

	cs, err := catalogsync.New(a.options()...)
	if err != nil {
		return nil, err
	}
	a.catalogSync = cs
	return cs, nil
}

// CatalogSyncWithOptions returns a new instance built from the
// configuration followed by opts.
func (a *App) CatalogSyncWithOptions(opts ...catalogsync.Option) (catalogsync.CatalogSync, error) {
	return catalogsync.New(append(a.options(), opts...)...)
}

// Shutdown performs graceful shutdown of the application.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalogSync = nil
	return nil
}

// options constructs library options from the app configuration.
func (a *App) options() []catalogsync.Option {
	opts := []catalogsync.Option{
		catalogsync.WithRoot(a.config.CatalogRoot),
		catalogsync.WithConcurrency(a.config.Concurrency),
		catalogsync.WithTimeout(a.config.Timeout),
		catalogsync.WithLogger(a.logger),
	}
	if a.config.ProvenanceFile != "" {
		opts = append(opts, catalogsync.WithProvenanceFile(a.config.ProvenanceFile))
	}
	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithCatalogSync sets a custom instance (useful for testing).
func WithCatalogSync(cs catalogsync.CatalogSync) Option {
	return func(a *App) error {
		a.catalogSync = cs
		return nil
	}
}
