package manifest

import (
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/catalogsync/pkg/catalogs"
)

// text decodes any YAML scalar to its literal text so that versions such
// as `1.10` keep their trailing zero.
type text string

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (t *text) UnmarshalYAML(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) || strings.HasPrefix(raw, `'`) {
		var str string
		if err := yaml.Unmarshal(b, &str); err != nil {
			return err
		}
		*t = text(str)
		return nil
	}
	if raw == "~" || raw == "null" {
		raw = ""
	}
	*t = text(raw)
	return nil
}

type document struct {
	Source    string  `yaml:"source"`
	Revisions []entry `yaml:"revisions"`
}

type ref struct {
	ID      text `yaml:"id"`
	Version text `yaml:"version"`
}

type entry struct {
	Kind        string          `yaml:"kind"`
	MessageType string          `yaml:"messageType"`
	ID          text            `yaml:"id"`
	Version     text            `yaml:"version"`
	Latest      *bool           `yaml:"latest"`
	Sequence    *int64          `yaml:"sequence"`
	Source      string          `yaml:"source"`
	Fields      catalogs.Fields `yaml:"fields"`
	Overrides   catalogs.Fields `yaml:"overrides"`
	Sends       []ref           `yaml:"sends"`
	Receives    []ref           `yaml:"receives"`
	Channels    []ref           `yaml:"channels"`
	Services    []ref           `yaml:"services"`
	Domain      *ref            `yaml:"domain"`
	SchemaFile  string          `yaml:"schemaFile"`
}

// revision converts a manifest entry. Identity is checked later by the
// engine; only the kind must parse here.
func (e entry) revision(source string) (catalogs.Revision, error) {
	kind, mt, err := catalogs.ParseKind(e.Kind)
	if err != nil {
		return catalogs.Revision{}, err
	}
	if e.MessageType != "" {
		mt = catalogs.MessageType(e.MessageType)
	}
	if e.Source != "" {
		source = e.Source
	}

	rev := catalogs.Revision{
		ID:           string(e.ID),
		Kind:         kind,
		MessageType:  mt,
		Version:      string(e.Version),
		Sequence:     e.Sequence,
		Source:       source,
		SourceFields: e.Fields,
		Overrides:    e.Overrides,
		Relationships: catalogs.Relationships{
			Sends:    refs(e.Sends),
			Receives: refs(e.Receives),
			Channels: refs(e.Channels),
			Services: refs(e.Services),
		},
	}
	if e.Latest != nil {
		rev.IsLatest = *e.Latest
	}
	if e.Domain != nil {
		rev.Relationships.Domain = &catalogs.Ref{ID: string(e.Domain.ID), Version: string(e.Domain.Version)}
	}
	return rev, nil
}

func refs(in []ref) []catalogs.Ref {
	if len(in) == 0 {
		return nil
	}
	out := make([]catalogs.Ref, len(in))
	for i, r := range in {
		out[i] = catalogs.Ref{ID: string(r.ID), Version: string(r.Version)}
	}
	return out
}
