package catalogs

import (
	"fmt"
	"strings"

	"github.com/agentstation/catalogsync/pkg/errors"
)

// Revision is one version of an entity as produced by a source adapter.
type Revision struct {
	ID          string      `json:"id" yaml:"id"`
	Kind        Kind        `json:"kind" yaml:"kind"`
	MessageType MessageType `json:"messageType,omitempty" yaml:"messageType,omitempty"`
	Version     string      `json:"version" yaml:"version"`

	// IsLatest is the source's assertion that no newer revision exists.
	IsLatest bool `json:"isLatest" yaml:"isLatest"`

	// Sequence orders versions that have no numeric or semver shape.
	Sequence *int64 `json:"sequence,omitempty" yaml:"sequence,omitempty"`

	// Source names the adapter or generator that produced the revision.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	SourceFields  Fields        `json:"sourceFields,omitempty" yaml:"sourceFields,omitempty"`
	Overrides     Fields        `json:"overrides,omitempty" yaml:"overrides,omitempty"` // Applied to user fields on create only
	Relationships Relationships `json:"relationships" yaml:"relationships"`

	// Files are attachments written beside the index.
	Files map[string][]byte `json:"-" yaml:"-"`

	// Warnings carries optional enrichment that the adapter could not load.
	Warnings []error `json:"-" yaml:"-"`
}

// Key returns the revision's entity identity.
func (r *Revision) Key() Key {
	return Key{Kind: r.Kind, MessageType: r.MessageType, ID: r.ID}
}

// Validate checks identity fields before any store access.
func (r *Revision) Validate() error {
	if !r.Kind.IsValid() {
		return errors.NewValidationError("kind", r.Kind, fmt.Sprintf("unknown entity kind %q", r.Kind))
	}
	if r.Kind == KindMessage && !r.MessageType.IsValid() {
		return errors.NewValidationError("messageType", r.MessageType, "message entities require event, command or query")
	}
	if r.Kind != KindMessage && r.MessageType != "" {
		return errors.NewValidationError("messageType", r.MessageType, "only messages carry a message type")
	}
	if err := ValidateSegment("id", r.ID); err != nil {
		return err
	}
	if err := ValidateSegment("version", r.Version); err != nil {
		return err
	}
	if strings.EqualFold(r.Version, "latest") {
		return errors.NewValidationError("version", r.Version, "reserved version name")
	}
	for name := range r.Files {
		if err := ValidateSegment("file", name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSegment checks that value can be used as a single path element.
func ValidateSegment(field, value string) error {
	switch {
	case value == "":
		return errors.NewValidationError(field, value, "cannot be empty")
	case value == "." || value == "..":
		return errors.NewValidationError(field, value, "cannot be a relative path element")
	case strings.HasPrefix(value, "."):
		return errors.NewValidationError(field, value, "cannot start with a dot")
	case strings.ContainsAny(value, `/\`):
		return errors.NewValidationError(field, value, "cannot contain a path separator")
	case strings.ContainsRune(value, 0):
		return errors.NewValidationError(field, value, "cannot contain NUL")
	}
	return nil
}
