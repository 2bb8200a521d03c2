package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	CatalogSyncFunc            func() (catalogsync.CatalogSync, error)
	CatalogSyncWithOptionsFunc func(...catalogsync.Option) (catalogsync.CatalogSync, error)
	GeneratorFunc              func(string) reconciler.GeneratorConfig
	LoggerFunc                 func() *zerolog.Logger
	Format                     string
	Provenance                 string
}

// CatalogSync returns an instance using the mock function or nil.
func (m *Mock) CatalogSync() (catalogsync.CatalogSync, error) {
	if m.CatalogSyncFunc != nil {
		return m.CatalogSyncFunc()
	}
	return m.CatalogSyncWithOptions()
}

// CatalogSyncWithOptions returns an instance using the mock function or nil.
func (m *Mock) CatalogSyncWithOptions(opts ...catalogsync.Option) (catalogsync.CatalogSync, error) {
	if m.CatalogSyncWithOptionsFunc != nil {
		return m.CatalogSyncWithOptionsFunc(opts...)
	}
	return nil, nil
}

// Generator returns generator options using the mock function or the defaults.
func (m *Mock) Generator(name string) reconciler.GeneratorConfig {
	if m.GeneratorFunc != nil {
		return m.GeneratorFunc(name)
	}
	return reconciler.DefaultGeneratorConfig(name)
}

// ProvenanceFile returns the configured provenance path.
func (m *Mock) ProvenanceFile() string {
	return m.Provenance
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the configured format, "json" when unset.
func (m *Mock) OutputFormat() string {
	if m.Format != "" {
		return m.Format
	}
	return "json"
}

// Version returns "dev".
func (m *Mock) Version() string { return "dev" }

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
