package reconciler

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/catalogsync/pkg/authority"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/differ"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/render"
)

type options struct {
	policy      authority.Policy
	renderer    render.Renderer
	differ      differ.Differ
	generator   GeneratorConfig
	concurrency int
	tracking    bool
	repair      bool
	dryRun      bool
	now         func() utc.Time
}

func defaultOptions() *options {
	return &options{
		policy:      authority.New(),
		renderer:    render.New(),
		differ:      differ.New(),
		generator:   DefaultGeneratorConfig(""),
		concurrency: constants.DefaultConcurrency,
		tracking:    true,
		repair:      true,
		now:         utc.Now,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithPolicy sets the field ownership policy. It must match the policy the
// store decodes with.
func WithPolicy(policy authority.Policy) Option {
	return func(o *options) error {
		if policy == nil {
			return &errors.ValidationError{Field: "policy", Message: "cannot be nil"}
		}
		o.policy = policy
		return nil
	}
}

// WithRenderer sets the default content renderer used on creation.
func WithRenderer(r render.Renderer) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{Field: "renderer", Message: "cannot be nil"}
		}
		o.renderer = r
		return nil
	}
}

// WithDiffer sets the change detector.
func WithDiffer(d differ.Differ) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{Field: "differ", Message: "cannot be nil"}
		}
		o.differ = d
		return nil
	}
}

// WithGenerator sets the generator configuration.
func WithGenerator(cfg GeneratorConfig) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.generator = cfg
		return nil
	}
}

// WithConcurrency sets how many entity ids are reconciled in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if err := validateConcurrency(n, constants.MaxConcurrency); err != nil {
			return err
		}
		o.concurrency = n
		return nil
	}
}

// WithProvenance enables field-level tracking.
func WithProvenance(enabled bool) Option {
	return func(o *options) error {
		o.tracking = enabled
		return nil
	}
}

// WithAutoRepair controls whether an id found with archived snapshots but
// no current revision is restored before it is reconciled.
func WithAutoRepair(enabled bool) Option {
	return func(o *options) error {
		o.repair = enabled
		return nil
	}
}

// WithDryRun marks results as produced by a dry run. The caller supplies
// a store that discards writes.
func WithDryRun(dryRun bool) Option {
	return func(o *options) error {
		o.dryRun = dryRun
		return nil
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() utc.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.now = now
		return nil
	}
}
