package reconciler

import "github.com/agentstation/catalogsync/pkg/catalogs"

// MergeRefs appends the incoming references whose ids are not already
// present. The first reference to an id wins, so a stored reference is
// never replaced by a different version of the same id.
func MergeRefs(stored, incoming []catalogs.Ref) []catalogs.Ref {
	if len(stored) == 0 && len(incoming) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(stored)+len(incoming))
	out := make([]catalogs.Ref, 0, len(stored)+len(incoming))
	for _, list := range [][]catalogs.Ref{stored, incoming} {
		for _, ref := range list {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			out = append(out, ref)
		}
	}
	return out
}

// AddRefs adds each incoming id to the set. Adding an id that is already
// present is a no-op.
func AddRefs(set []catalogs.Ref, incoming ...catalogs.Ref) []catalogs.Ref {
	return MergeRefs(set, incoming)
}

// MergeRelationships combines stored and incoming relationships. With
// preserveMessages false the incoming sends and receives replace the
// stored ones. The stored parent domain is kept once set.
func MergeRelationships(stored, incoming catalogs.Relationships, preserveMessages bool) catalogs.Relationships {
	out := catalogs.Relationships{
		Channels: AddRefs(stored.Channels, incoming.Channels...),
		Services: AddRefs(stored.Services, incoming.Services...),
	}
	if preserveMessages {
		out.Sends = MergeRefs(stored.Sends, incoming.Sends)
		out.Receives = MergeRefs(stored.Receives, incoming.Receives)
	} else {
		out.Sends = MergeRefs(nil, incoming.Sends)
		out.Receives = MergeRefs(nil, incoming.Receives)
	}

	switch {
	case stored.Domain != nil:
		d := *stored.Domain
		out.Domain = &d
	case incoming.Domain != nil:
		d := *incoming.Domain
		out.Domain = &d
	}
	return out
}
