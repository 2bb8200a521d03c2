package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/catalogsync/pkg/catalogs"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a field was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a field was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a field was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`                               // Field path (e.g., "fields.name", "relationships.sends")
	OldValue string     `json:"old_value,omitempty" yaml:"old_value,omitempty"` // Previous value (string representation)
	NewValue string     `json:"new_value,omitempty" yaml:"new_value,omitempty"` // New value (string representation)
	Type     ChangeType `json:"type" yaml:"type"`                               // Type of change
}

// Changeset lists the field changes between two revisions of one entity.
type Changeset struct {
	Key     catalogs.Key  `json:"key" yaml:"key"`
	Changes []FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c != nil && len(c.Changes) > 0
}

// Paths returns the changed field paths in order.
func (c *Changeset) Paths() []string {
	if c == nil {
		return nil
	}
	paths := make([]string, len(c.Changes))
	for i, ch := range c.Changes {
		paths[i] = ch.Path
	}
	return paths
}

// String returns a one-line summary of the changeset.
func (c *Changeset) String() string {
	if !c.HasChanges() {
		return fmt.Sprintf("%s: no changes", c.Key)
	}
	return fmt.Sprintf("%s: %d changes (%s)", c.Key, len(c.Changes), strings.Join(c.Paths(), ", "))
}
