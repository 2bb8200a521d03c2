package catalogsync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/catalogsync/pkg/authority"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/reconciler"
	"github.com/agentstation/catalogsync/pkg/render"
)

// config holds the configuration for a CatalogSync instance
type config struct {
	root           string
	store          catalogs.Store
	policy         authority.Policy
	renderer       render.Renderer
	generator      reconciler.GeneratorConfig
	concurrency    int
	dryRun         bool
	timeout        time.Duration
	provenanceFile string
	logger         *zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		policy:      authority.New(),
		renderer:    render.New(),
		generator:   reconciler.DefaultGeneratorConfig(""),
		concurrency: constants.DefaultConcurrency,
		timeout:     constants.CommandTimeout,
	}
}

func (c *config) validate() error {
	if c.store == nil && c.root == "" {
		return &errors.ValidationError{Field: "root", Message: "a catalog root or a store is required"}
	}
	return c.generator.Validate()
}

// Option is a function that configures a CatalogSync instance
type Option func(*config) error

// WithRoot sets the catalog root directory. The root is always passed
// explicitly; nothing is read from the process environment here.
func WithRoot(root string) Option {
	return func(c *config) error {
		if root == "" {
			return &errors.ValidationError{Field: "root", Message: "cannot be empty"}
		}
		c.root = root
		return nil
	}
}

// WithStore uses s instead of a filesystem store under the root.
func WithStore(s catalogs.Store) Option {
	return func(c *config) error {
		if s == nil {
			return &errors.ValidationError{Field: "store", Message: "cannot be nil"}
		}
		c.store = s
		return nil
	}
}

// WithPolicy sets the field ownership policy used by the store and the reconciler.
func WithPolicy(policy authority.Policy) Option {
	return func(c *config) error {
		if policy == nil {
			return &errors.ValidationError{Field: "policy", Message: "cannot be nil"}
		}
		c.policy = policy
		return nil
	}
}

// WithRenderer sets the renderer that produces defaults for new entities.
func WithRenderer(r render.Renderer) Option {
	return func(c *config) error {
		if r == nil {
			return &errors.ValidationError{Field: "renderer", Message: "cannot be nil"}
		}
		c.renderer = r
		return nil
	}
}

// WithGenerator sets the generator options.
func WithGenerator(cfg reconciler.GeneratorConfig) Option {
	return func(c *config) error {
		c.generator = cfg
		return nil
	}
}

// WithConcurrency bounds the number of ids reconciled in parallel.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		c.concurrency = n
		return nil
	}
}

// WithDryRun reports every action without writing to disk.
func WithDryRun(dryRun bool) Option {
	return func(c *config) error {
		c.dryRun = dryRun
		return nil
	}
}

// WithTimeout bounds a Sync call; zero disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return &errors.ValidationError{Field: "timeout", Value: timeout, Message: "cannot be negative"}
		}
		c.timeout = timeout
		return nil
	}
}

// WithProvenanceFile merges the provenance of each run into path.
func WithProvenanceFile(path string) Option {
	return func(c *config) error {
		c.provenanceFile = path
		return nil
	}
}

// WithLogger sets the logger carried through every operation.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
