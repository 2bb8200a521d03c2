package catalogs

import "sort"

// Fields is an open set of frontmatter values keyed by field name.
type Fields map[string]any

// Clone returns a deep copy of the fields. Nested maps and slices produced
// by YAML decoding are copied so snapshots never share mutable state.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = CloneValue(v)
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value for key when it is a string.
func (f Fields) String(key string) string {
	if s, ok := f[key].(string); ok {
		return s
	}
	return ""
}

// CloneValue deep-copies maps and slices of the shapes YAML decoding yields.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case Fields:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []Badge:
		return append([]Badge(nil), t...)
	default:
		return v
	}
}
