package reconciler

import (
	"github.com/agentstation/catalogsync/pkg/authority"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/render"
)

// merger splits incoming fields between user and source ownership.
type merger struct {
	policy authority.Policy
}

func newMerger(policy authority.Policy) *merger {
	return &merger{policy: policy}
}

// create computes the fields of a new entity. Rendered defaults seed the
// user fields, then source values for user-owned keys, then the summary
// override and revision overrides in that order.
func (m *merger) create(rev *catalogs.Revision, defaults render.Defaults, incoming, overrides catalogs.Fields, summary string) (user, source catalogs.Fields) {
	user = defaults.Fields()
	source = catalogs.Fields{}
	for k, v := range incoming {
		if m.policy.Owner(k) == authority.OwnerUser {
			user[k] = catalogs.CloneValue(v)
			continue
		}
		source[k] = catalogs.CloneValue(v)
	}
	if summary != "" {
		user[catalogs.FieldSummary] = summary
	}
	for k, v := range overrides {
		user[k] = catalogs.CloneValue(v)
	}
	return user, source
}

// carry computes the fields of an entity that already exists. User fields
// are carried verbatim and source fields are replaced, except merged
// fields which combine key by key. An unclaimed key the source supplies
// moves to the source side since the source now asserts it.
func (m *merger) carry(stored *catalogs.Entity, incoming catalogs.Fields) (user, source catalogs.Fields) {
	user = stored.UserFields.Clone()
	if user == nil {
		user = catalogs.Fields{}
	}
	source = catalogs.Fields{}
	for k, v := range stored.SourceFields {
		if m.policy.Owner(k) == authority.OwnerMerged {
			source[k] = catalogs.CloneValue(v)
		}
	}

	for k, v := range incoming {
		switch m.policy.Owner(k) {
		case authority.OwnerUser:
			continue
		case authority.OwnerMerged:
			source[k] = mergeMaps(source[k], v)
		default:
			delete(user, k)
			source[k] = catalogs.CloneValue(v)
		}
	}
	return user, source
}

// mergeMaps overlays incoming map keys on stored ones. A non-map incoming
// value replaces the stored value outright.
func mergeMaps(stored, incoming any) any {
	in, ok := asMap(incoming)
	if !ok {
		return catalogs.CloneValue(incoming)
	}
	out, ok := asMap(catalogs.CloneValue(stored))
	if !ok {
		out = make(map[string]any, len(in))
	}
	for k, v := range in {
		out[k] = catalogs.CloneValue(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case catalogs.Fields:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

// mergeFiles overlays incoming files on stored ones.
func mergeFiles(stored, incoming map[string][]byte) map[string][]byte {
	if len(stored) == 0 && len(incoming) == 0 {
		return nil
	}
	out := catalogs.CloneFiles(stored)
	if out == nil {
		out = make(map[string][]byte, len(incoming))
	}
	for name, data := range incoming {
		out[name] = append([]byte(nil), data...)
	}
	return out
}
