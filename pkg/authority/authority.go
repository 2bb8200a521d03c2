// Package authority decides who owns each entity field: the people who edit
// the catalog by hand, the source adapters that regenerate it, or both.
package authority

import (
	"path/filepath"
	"strings"
)

// Owner identifies who is authoritative for a field.
type Owner string

const (
	// OwnerUnclaimed fields have no rule. They are preserved like user
	// fields unless a source supplies them again.
	OwnerUnclaimed Owner = "unclaimed"

	// OwnerUser fields are set once at creation and never replaced by a source.
	OwnerUser Owner = "user"

	// OwnerSource fields are fully replaced by every incoming revision.
	OwnerSource Owner = "source"

	// OwnerMerged fields are maps merged key by key: incoming keys replace
	// matching keys and every other stored key is kept.
	OwnerMerged Owner = "merged"
)

// Field assigns an owner to the fields matching a pattern.
type Field struct {
	Pattern  string `json:"pattern" yaml:"pattern"`   // e.g. "markdown", "schema*"
	Owner    Owner  `json:"owner" yaml:"owner"`       // Who is authoritative
	Priority int    `json:"priority" yaml:"priority"` // Higher wins when patterns overlap
}

// Policy resolves field ownership.
type Policy interface {
	// Owner returns the owner of a top-level field name.
	Owner(field string) Owner

	// Fields returns the configured rules.
	Fields() []Field
}

type policy struct {
	fields []Field
}

// New creates a policy from the given rules. Without rules the default
// catalog ownership applies.
func New(fields ...Field) Policy {
	if len(fields) == 0 {
		fields = DefaultFields()
	}
	return &policy{fields: append([]Field(nil), fields...)}
}

// Owner returns the owner of a field, or OwnerUnclaimed.
func (p *policy) Owner(field string) Owner {
	if f := ByField(field, p.fields); f != nil {
		return f.Owner
	}
	return OwnerUnclaimed
}

// Fields returns a copy of the rules.
func (p *policy) Fields() []Field {
	return append([]Field(nil), p.fields...)
}

// ByField returns the highest priority rule matching a field name.
func ByField(field string, fields []Field) *Field {
	var bestMatch *Field
	var bestPriority int
	var bestMatchLength int

	for i, f := range fields {
		if !MatchesPattern(field, f.Pattern) {
			continue
		}
		// Prioritize by: 1) priority, 2) pattern specificity (length), 3) order
		patternLength := len(f.Pattern)
		if bestMatch == nil || f.Priority > bestPriority ||
			(f.Priority == bestPriority && patternLength > bestMatchLength) {
			bestMatch = &fields[i]
			bestPriority = f.Priority
			bestMatchLength = patternLength
		}
	}
	return bestMatch
}

// MatchesPattern checks if a field name matches a pattern (supports * wildcards)
func MatchesPattern(field, pattern string) bool {
	if field == pattern {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, "*?[") {
		return strings.HasPrefix(field, prefix)
	}
	matched, err := filepath.Match(pattern, field)
	if err != nil {
		return false
	}
	return matched
}

// DefaultFields returns the catalog's standard ownership rules.
func DefaultFields() []Field {
	return []Field{
		// Hand-edited content
		{Pattern: "markdown", Owner: OwnerUser, Priority: 100},
		{Pattern: "badges", Owner: OwnerUser, Priority: 100},
		{Pattern: "summary", Owner: OwnerUser, Priority: 100},
		{Pattern: "owners", Owner: OwnerUser, Priority: 100},
		{Pattern: "styles", Owner: OwnerUser, Priority: 100},
		{Pattern: "attachments", Owner: OwnerUser, Priority: 100},
		{Pattern: "repository", Owner: OwnerUser, Priority: 100},

		// Pointers contributed by several generators over time
		{Pattern: "specifications", Owner: OwnerMerged, Priority: 100},

		// Regenerated from the registry on every run
		{Pattern: "name", Owner: OwnerSource, Priority: 90},
		{Pattern: "schemaPath", Owner: OwnerSource, Priority: 90},
		{Pattern: "schema*", Owner: OwnerSource, Priority: 80},
		{Pattern: "producers", Owner: OwnerSource, Priority: 80},
		{Pattern: "consumers", Owner: OwnerSource, Priority: 80},
		{Pattern: "address", Owner: OwnerSource, Priority: 80},
		{Pattern: "protocols", Owner: OwnerSource, Priority: 80},
	}
}
