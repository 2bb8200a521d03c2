// Package differ detects field-level changes between two revisions of an
// entity as they would be persisted. User and source fields share one
// frontmatter namespace on disk, so they are compared as a single set.
package differ

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/agentstation/catalogsync/pkg/catalogs"
)

// Differ handles change detection between entity revisions.
type Differ interface {
	// Entities compares a stored revision with the revision about to be
	// written. A nil existing entity reports every field as added.
	Entities(existing, updated *catalogs.Entity) *Changeset
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields   map[string]bool
	maxValueLength int
}

// New creates a Differ. Timestamps are always ignored.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields:   map[string]bool{"createdAt": true, "updatedAt": true},
		maxValueLength: 80,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Entities compares two revisions.
func (d *differ) Entities(existing, updated *catalogs.Entity) *Changeset {
	if existing == nil {
		existing = &catalogs.Entity{}
	}
	cs := &Changeset{Key: updated.Key()}

	d.compare(cs, "version", existing.Version, updated.Version)
	d.compare(cs, "sequence", deref(existing.Sequence), deref(updated.Sequence))

	oldFields := flatten(existing)
	newFields := flatten(updated)
	for _, k := range unionKeys(oldFields, newFields) {
		d.compare(cs, "fields."+k, oldFields[k], newFields[k])
	}

	or, nr := existing.Relationships, updated.Relationships
	d.compare(cs, "relationships.sends", refs(or.Sends), refs(nr.Sends))
	d.compare(cs, "relationships.receives", refs(or.Receives), refs(nr.Receives))
	d.compare(cs, "relationships.channels", refs(or.Channels), refs(nr.Channels))
	d.compare(cs, "relationships.services", refs(or.Services), refs(nr.Services))
	d.compare(cs, "relationships.domain", refPtr(or.Domain), refPtr(nr.Domain))

	names := make(map[string]bool)
	for n := range existing.Files {
		names[n] = true
	}
	for n := range updated.Files {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	for _, n := range sorted {
		path := "files." + n
		if d.ignoreFields[path] {
			continue
		}
		oldData, hadOld := existing.Files[n]
		newData, hasNew := updated.Files[n]
		switch {
		case !hadOld:
			cs.Changes = append(cs.Changes, FieldChange{Path: path, NewValue: sizeOf(newData), Type: ChangeTypeAdd})
		case !hasNew:
			cs.Changes = append(cs.Changes, FieldChange{Path: path, OldValue: sizeOf(oldData), Type: ChangeTypeRemove})
		case !bytes.Equal(oldData, newData):
			cs.Changes = append(cs.Changes, FieldChange{Path: path, OldValue: sizeOf(oldData), NewValue: sizeOf(newData), Type: ChangeTypeUpdate})
		}
	}
	return cs
}

func (d *differ) compare(cs *Changeset, path string, oldValue, newValue any) {
	if d.ignoreFields[path] || reflect.DeepEqual(oldValue, newValue) {
		return
	}
	change := FieldChange{Path: path, Type: ChangeTypeUpdate}
	switch {
	case isEmpty(oldValue):
		change.Type = ChangeTypeAdd
	case isEmpty(newValue):
		change.Type = ChangeTypeRemove
	}
	if !isEmpty(oldValue) {
		change.OldValue = d.render(oldValue)
	}
	if !isEmpty(newValue) {
		change.NewValue = d.render(newValue)
	}
	cs.Changes = append(cs.Changes, change)
}

func (d *differ) render(v any) string {
	s := fmt.Sprintf("%v", v)
	if d.maxValueLength > 3 && len(s) > d.maxValueLength {
		s = s[:d.maxValueLength-3] + "..."
	}
	return s
}

// flatten merges user and source fields the way the store writes them.
func flatten(e *catalogs.Entity) map[string]any {
	out := make(map[string]any, len(e.UserFields)+len(e.SourceFields))
	for k, v := range e.UserFields {
		out[k] = v
	}
	for k, v := range e.SourceFields {
		out[k] = v
	}
	return out
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// refs normalizes nil and empty slices so they compare equal.
func refs(r []catalogs.Ref) any {
	if len(r) == 0 {
		return nil
	}
	return r
}

func refPtr(r *catalogs.Ref) any {
	if r == nil {
		return nil
	}
	return *r
}

func deref(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func sizeOf(b []byte) string {
	return fmt.Sprintf("%d bytes", len(b))
}
