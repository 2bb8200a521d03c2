package catalogs

import (
	"fmt"

	"github.com/agentstation/utc"
)

// Key identifies an entity independently of its version. Messages are
// additionally scoped by their message type.
type Key struct {
	Kind        Kind        `json:"kind" yaml:"kind"`
	MessageType MessageType `json:"messageType,omitempty" yaml:"messageType,omitempty"`
	ID          string      `json:"id" yaml:"id"`
}

// String returns "kind:id" or "kind/messageType:id".
func (k Key) String() string {
	if k.MessageType != "" {
		return fmt.Sprintf("%s/%s:%s", k.Kind, k.MessageType, k.ID)
	}
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// Resource names the key for errors and logs ("service", "event").
func (k Key) Resource() string {
	if k.Kind == KindMessage && k.MessageType != "" {
		return string(k.MessageType)
	}
	return string(k.Kind)
}

// Entity is the stored state of one revision of a catalog entry: either
// the current revision or an archived snapshot. Snapshots are complete
// copies, never diffs.
type Entity struct {
	ID          string      `json:"id" yaml:"id"`
	Kind        Kind        `json:"kind" yaml:"kind"`
	MessageType MessageType `json:"messageType,omitempty" yaml:"messageType,omitempty"`
	Version     string      `json:"version" yaml:"version"`
	Sequence    *int64      `json:"sequence,omitempty" yaml:"sequence,omitempty"` // Source-declared order hint

	// UserFields may be hand-edited and are never replaced by source data.
	UserFields Fields `json:"userFields,omitempty" yaml:"userFields,omitempty"`

	// SourceFields were last written by a source adapter.
	SourceFields Fields `json:"sourceFields,omitempty" yaml:"sourceFields,omitempty"`

	Relationships Relationships `json:"relationships" yaml:"relationships"`

	// Files are attachments stored beside the index (e.g. schema documents).
	Files map[string][]byte `json:"-" yaml:"-"`

	CreatedAt utc.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt utc.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Key returns the entity's version-independent identity.
func (e *Entity) Key() Key {
	return Key{Kind: e.Kind, MessageType: e.MessageType, ID: e.ID}
}

// Markdown returns the user-owned markdown body.
func (e *Entity) Markdown() string {
	return e.UserFields.String(FieldMarkdown)
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	if e.Sequence != nil {
		seq := *e.Sequence
		out.Sequence = &seq
	}
	out.UserFields = e.UserFields.Clone()
	out.SourceFields = e.SourceFields.Clone()
	out.Relationships = e.Relationships.Clone()
	out.Files = CloneFiles(e.Files)
	return &out
}

// CloneFiles deep-copies an attachment map.
func CloneFiles(files map[string][]byte) map[string][]byte {
	if files == nil {
		return nil
	}
	out := make(map[string][]byte, len(files))
	for name, data := range files {
		out[name] = append([]byte(nil), data...)
	}
	return out
}

// Well-known field names.
const (
	FieldMarkdown       = "markdown"
	FieldBadges         = "badges"
	FieldSummary        = "summary"
	FieldName           = "name"
	FieldDescription    = "description"
	FieldSpecifications = "specifications"
	FieldSchemaPath     = "schemaPath"
)
