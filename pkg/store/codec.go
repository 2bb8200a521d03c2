package store

import (
	"bytes"
	"strings"
	"time"

	"github.com/agentstation/utc"
	"github.com/goccy/go-yaml"

	"github.com/agentstation/catalogsync/pkg/authority"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
)

const frontmatterDelim = "---"

// systemKeys are frontmatter keys owned by the store itself.
var systemKeys = map[string]bool{
	"id":        true,
	"version":   true,
	"sequence":  true,
	"createdAt": true,
	"updatedAt": true,
	"sends":     true,
	"receives":  true,
	"channels":  true,
	"services":  true,
	"domain":    true,

	"sourceKeys": true,
}

// IsSystemKey reports whether a frontmatter key is reserved by the store.
func IsSystemKey(key string) bool {
	return systemKeys[key]
}

// scalar decodes any YAML scalar to its literal text, so hand-written
// versions like `version: 1.10` keep their trailing zero.
type scalar string

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (s *scalar) UnmarshalYAML(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) || strings.HasPrefix(raw, `'`) {
		var str string
		if err := yaml.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = scalar(str)
		return nil
	}
	if raw == "~" || raw == "null" {
		raw = ""
	}
	*s = scalar(raw)
	return nil
}

type refDoc struct {
	ID      scalar `yaml:"id"`
	Version scalar `yaml:"version"`
}

// header is the typed view of the system keys.
type header struct {
	ID        scalar   `yaml:"id"`
	Version   scalar   `yaml:"version"`
	Sequence  *int64   `yaml:"sequence"`
	CreatedAt scalar   `yaml:"createdAt"`
	UpdatedAt scalar   `yaml:"updatedAt"`
	Sends     []refDoc `yaml:"sends"`
	Receives  []refDoc `yaml:"receives"`
	Channels  []refDoc `yaml:"channels"`
	Services  []refDoc `yaml:"services"`
	Domain    *refDoc  `yaml:"domain"`

	SourceKeys []string `yaml:"sourceKeys"`
}

// Encode renders an entity as an index document: YAML frontmatter holding
// the system keys and every user and source field, followed by the
// markdown body. The sourceKeys list records which fields the source
// wrote, so they decode back to the source side.
func Encode(e *catalogs.Entity) ([]byte, error) {
	fm := yaml.MapSlice{{Key: "id", Value: e.ID}}

	fields := make(catalogs.Fields, len(e.UserFields)+len(e.SourceFields))
	for k, v := range e.UserFields {
		fields[k] = v
	}
	for k, v := range e.SourceFields {
		fields[k] = v
	}
	delete(fields, catalogs.FieldMarkdown)

	if name, ok := fields[catalogs.FieldName]; ok {
		fm = append(fm, yaml.MapItem{Key: catalogs.FieldName, Value: name})
	}
	fm = append(fm, yaml.MapItem{Key: "version", Value: e.Version})
	if e.Sequence != nil {
		fm = append(fm, yaml.MapItem{Key: "sequence", Value: *e.Sequence})
	}
	for _, k := range fields.Keys() {
		if k == catalogs.FieldName || IsSystemKey(k) {
			continue
		}
		fm = append(fm, yaml.MapItem{Key: k, Value: fields[k]})
	}
	if keys := sourceKeys(e.SourceFields); len(keys) > 0 {
		fm = append(fm, yaml.MapItem{Key: "sourceKeys", Value: keys})
	}

	rel := e.Relationships
	for _, item := range []struct {
		key  string
		refs []catalogs.Ref
	}{
		{"sends", rel.Sends},
		{"receives", rel.Receives},
		{"channels", rel.Channels},
		{"services", rel.Services},
	} {
		if len(item.refs) > 0 {
			fm = append(fm, yaml.MapItem{Key: item.key, Value: item.refs})
		}
	}
	if rel.Domain != nil {
		fm = append(fm, yaml.MapItem{Key: "domain", Value: *rel.Domain})
	}
	if !e.CreatedAt.IsZero() {
		fm = append(fm, yaml.MapItem{Key: "createdAt", Value: formatTime(e.CreatedAt)})
	}
	if !e.UpdatedAt.IsZero() {
		fm = append(fm, yaml.MapItem{Key: "updatedAt", Value: formatTime(e.UpdatedAt)})
	}

	data, err := yaml.MarshalWithOptions(fm,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return nil, errors.WrapParse("yaml", e.ID, err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(data)
	if !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(frontmatterDelim + "\n")
	buf.WriteString(e.Markdown())
	return buf.Bytes(), nil
}

// Decode parses an index document. A non-system key is loaded as a source
// field when it is listed in sourceKeys or the policy gives it to the
// source; any other key is user content.
func Decode(data []byte, key catalogs.Key, policy authority.Policy, file string) (*catalogs.Entity, error) {
	fmText, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, errors.WrapParse("frontmatter", file, err)
	}

	var h header
	if err := yaml.Unmarshal(fmText, &h); err != nil {
		return nil, errors.WrapParse("yaml", file, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(fmText, &raw); err != nil {
		return nil, errors.WrapParse("yaml", file, err)
	}

	if h.Version == "" {
		return nil, errors.NewParseError("frontmatter", file, "missing version", nil)
	}
	id := string(h.ID)
	if id == "" {
		id = key.ID
	}

	e := &catalogs.Entity{
		ID:           id,
		Kind:         key.Kind,
		MessageType:  key.MessageType,
		Version:      string(h.Version),
		Sequence:     h.Sequence,
		UserFields:   catalogs.Fields{},
		SourceFields: catalogs.Fields{},
		Relationships: catalogs.Relationships{
			Sends:    toRefs(h.Sends),
			Receives: toRefs(h.Receives),
			Channels: toRefs(h.Channels),
			Services: toRefs(h.Services),
		},
	}
	if h.Domain != nil {
		e.Relationships.Domain = &catalogs.Ref{ID: string(h.Domain.ID), Version: string(h.Domain.Version)}
	}
	if e.CreatedAt, err = parseTime(h.CreatedAt); err != nil {
		return nil, errors.WrapParse("frontmatter", file, err)
	}
	if e.UpdatedAt, err = parseTime(h.UpdatedAt); err != nil {
		return nil, errors.WrapParse("frontmatter", file, err)
	}

	written := make(map[string]bool, len(h.SourceKeys))
	for _, k := range h.SourceKeys {
		written[k] = true
	}
	for k, v := range raw {
		if IsSystemKey(k) || k == catalogs.FieldMarkdown {
			continue
		}
		switch owner := policy.Owner(k); {
		case owner == authority.OwnerUser:
			e.UserFields[k] = v
		case written[k], owner == authority.OwnerSource, owner == authority.OwnerMerged:
			e.SourceFields[k] = v
		default:
			e.UserFields[k] = v
		}
	}
	if len(body) > 0 {
		e.UserFields[catalogs.FieldMarkdown] = string(body)
	}
	return e, nil
}

// Normalize round-trips fields through YAML so values built in Go compare
// equal to the same values read back from disk.
func Normalize(fields catalogs.Fields) (catalogs.Fields, error) {
	if len(fields) == 0 {
		return fields, nil
	}
	data, err := yaml.Marshal(map[string]any(fields))
	if err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	return catalogs.Fields(out), nil
}

// sourceKeys lists the persisted source field names in sorted order.
func sourceKeys(fields catalogs.Fields) []string {
	keys := make([]string, 0, len(fields))
	for _, k := range fields.Keys() {
		if IsSystemKey(k) || k == catalogs.FieldMarkdown {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	text := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	open := []byte(frontmatterDelim + "\n")
	if !bytes.HasPrefix(text, open) {
		return nil, nil, errors.New("document does not start with a frontmatter delimiter")
	}
	rest := text[len(open):]
	if bytes.HasPrefix(rest, open) {
		return nil, rest[len(open):], nil
	}
	end := bytes.Index(rest, []byte("\n"+frontmatterDelim+"\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n"+frontmatterDelim)) {
			return rest[:len(rest)-len(frontmatterDelim)-1], nil, nil
		}
		return nil, nil, errors.New("unterminated frontmatter")
	}
	return rest[:end+1], rest[end+len(frontmatterDelim)+2:], nil
}

func toRefs(docs []refDoc) []catalogs.Ref {
	if len(docs) == 0 {
		return nil
	}
	refs := make([]catalogs.Ref, len(docs))
	for i, d := range docs {
		refs[i] = catalogs.Ref{ID: string(d.ID), Version: string(d.Version)}
	}
	return refs
}

func formatTime(t utc.Time) string {
	return t.Time.UTC().Format(time.RFC3339)
}

func parseTime(s scalar) (utc.Time, error) {
	if s == "" {
		return utc.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, string(s))
	if err != nil {
		return utc.Time{}, err
	}
	return utc.Time{Time: t.UTC()}, nil
}
