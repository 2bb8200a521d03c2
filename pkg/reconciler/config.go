package reconciler

import (
	"fmt"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// GeneratorConfig holds the options a generator passes to the engine.
type GeneratorConfig struct {
	// Name identifies the generator in reports and provenance.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// PreserveExistingMessages keeps stored sends/receives when a revision
	// supersedes the current one. When false the incoming arrays replace
	// them and the old arrays survive only in the archived snapshot.
	PreserveExistingMessages bool `json:"preserveExistingMessages" yaml:"preserveExistingMessages" mapstructure:"preserve_existing_messages"`

	// IncludeAllVersions processes non-latest revisions. When false they
	// are excluded before resolution.
	IncludeAllVersions bool `json:"includeAllVersions" yaml:"includeAllVersions" mapstructure:"include_all_versions"`

	// ForwardOnly asserts the source emits revisions oldest to newest, so
	// a newer revision supersedes even when it is not flagged latest.
	ForwardOnly bool `json:"forwardOnly" yaml:"forwardOnly" mapstructure:"forward_only"`

	// Summary is applied to the summary field of newly created entities.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty" mapstructure:"summary"`

	// NestServicesUnderDomain writes new services with a parent domain
	// below that domain's directory.
	NestServicesUnderDomain bool `json:"nestServicesUnderDomain" yaml:"nestServicesUnderDomain" mapstructure:"nest_services_under_domain"`
}

// DefaultGeneratorConfig returns the defaults for a named generator.
func DefaultGeneratorConfig(name string) GeneratorConfig {
	return GeneratorConfig{
		Name:                     name,
		PreserveExistingMessages: true,
		IncludeAllVersions:       true,
		NestServicesUnderDomain:  true,
	}
}

// Validate checks the configuration.
func (c GeneratorConfig) Validate() error {
	if c.Name == "" {
		return nil
	}
	return catalogs.ValidateSegment("generator", c.Name)
}

// validateConcurrency bounds the worker count.
func validateConcurrency(n, limit int) error {
	if n < 1 || n > limit {
		return errors.NewValidationError("concurrency", n, fmt.Sprintf("must be between 1 and %d", limit))
	}
	return nil
}
