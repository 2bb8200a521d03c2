// Package provenance records which source and version last wrote each
// source-owned field of a catalog entity.
package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// Provenance tracks the origin of a field value. Action is the resolver
// action that caused the write.
type Provenance struct {
	Source    string    `yaml:"source"`
	Version   string    `yaml:"version"`
	Action    string    `yaml:"action"`
	Value     any       `yaml:"value,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
	Archived  bool      `yaml:"archived,omitempty"`
}

// Map tracks provenance for multiple entities.
type Map map[string][]Provenance // key is "kind:id:field"

// Tracker manages provenance tracking during a sync run. It is safe for
// concurrent use.
type Tracker interface {
	// Track records provenance for a field
	Track(key catalogs.Key, field string, p Provenance)

	// TrackFields records one entry per field in fields
	TrackFields(key catalogs.Key, fields catalogs.Fields, p Provenance)

	// FindByField retrieves provenance for a specific field
	FindByField(key catalogs.Key, field string) []Provenance

	// FindByEntity retrieves all provenance for an entity
	FindByEntity(key catalogs.Key) map[string][]Provenance

	// Map returns a copy of the complete provenance map
	Map() Map

	// Clear removes all provenance data
	Clear()
}

type tracker struct {
	mu         sync.RWMutex
	provenance Map
	enabled    bool
}

// NewTracker creates a new provenance tracker. A disabled tracker drops
// everything it is given.
func NewTracker(enabled bool) Tracker {
	return &tracker{
		provenance: make(Map),
		enabled:    enabled,
	}
}

func (p *tracker) Track(key catalogs.Key, field string, history Provenance) {
	if !p.enabled {
		return
	}
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	k := makeKey(key, field)
	p.provenance[k] = append(p.provenance[k], history)
}

func (p *tracker) TrackFields(key catalogs.Key, fields catalogs.Fields, history Provenance) {
	if !p.enabled {
		return
	}
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now().UTC()
	}
	for _, field := range fields.Keys() {
		h := history
		h.Value = fields[field]
		p.Track(key, field, h)
	}
}

func (p *tracker) FindByField(key catalogs.Key, field string) []Provenance {
	if !p.enabled {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Provenance(nil), p.provenance[makeKey(key, field)]...)
}

func (p *tracker) FindByEntity(key catalogs.Key) map[string][]Provenance {
	if !p.enabled {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string][]Provenance)
	prefix := key.String() + ":"
	for k, info := range p.provenance {
		if field, found := strings.CutPrefix(k, prefix); found {
			result[field] = append([]Provenance(nil), info...)
		}
	}
	return result
}

func (p *tracker) Map() Map {
	if !p.enabled {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(Map, len(p.provenance))
	for k, v := range p.provenance {
		result[k] = append([]Provenance{}, v...)
	}
	return result
}

func (p *tracker) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provenance = make(Map)
}

// makeKey joins the entity key and field. Entity keys contain exactly one
// colon, so the field is everything after the second.
func makeKey(key catalogs.Key, field string) string {
	return key.String() + ":" + field
}

// Report is a human-readable view of a provenance Map.
type Report struct {
	Entities map[string]EntityProvenance // key is the entity key string
}

// EntityProvenance contains provenance for a single entity.
type EntityProvenance struct {
	Key    string
	Fields map[string]Field
}

// Field contains provenance history for a single field.
type Field struct {
	Current Provenance   // Latest write
	History []Provenance // All writes, newest first
}

// GenerateReport creates a provenance report from a Map.
func GenerateReport(provenance Map) *Report {
	report := &Report{
		Entities: make(map[string]EntityProvenance),
	}

	for key, infos := range provenance {
		parts := strings.SplitN(key, ":", 3)
		if len(parts) != 3 {
			continue
		}
		entityKey := parts[0] + ":" + parts[1]
		field := parts[2]

		entity, exists := report.Entities[entityKey]
		if !exists {
			entity = EntityProvenance{Key: entityKey, Fields: make(map[string]Field)}
		}

		history := append([]Provenance(nil), infos...)
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Timestamp.After(history[j].Timestamp)
		})
		fp := Field{History: history}
		if len(history) > 0 {
			fp.Current = history[0]
		}
		entity.Fields[field] = fp
		report.Entities[entityKey] = entity
	}
	return report
}

// String generates a string representation of the provenance report.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")

	keys := make([]string, 0, len(r.Entities))
	for key := range r.Entities {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entity := r.Entities[key]
		sb.WriteString(entity.Key + "\n")
		sb.WriteString(strings.Repeat("-", 40))
		sb.WriteString("\n")

		fields := make([]string, 0, len(entity.Fields))
		for field := range entity.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			fp := entity.Fields[field]
			fmt.Fprintf(&sb, "  %s: %v (from %s@%s, %s)\n",
				field, fp.Current.Value, fp.Current.Source, fp.Current.Version, fp.Current.Action)
			if len(fp.History) > 1 {
				for i, info := range fp.History[1:] {
					if i >= 3 {
						fmt.Fprintf(&sb, "    ... and %d more\n", len(fp.History)-1-i)
						break
					}
					fmt.Fprintf(&sb, "    - %v from %s@%s\n", info.Value, info.Source, info.Version)
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// File represents a provenance file stored on disk.
type File struct {
	Provenance Map `yaml:"provenance"`
}

// Load reads provenance data from a YAML file.
// Returns nil, nil if the file doesn't exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var pf File
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &pf, nil
}

// Save merges m into the file at path, appending to existing histories.
func Save(path string, m Map) error {
	existing, err := Load(path)
	if err != nil {
		return err
	}
	merged := make(Map)
	if existing != nil {
		for k, v := range existing.Provenance {
			merged[k] = v
		}
	}
	for k, v := range m {
		merged[k] = append(merged[k], v...)
	}

	data, err := yaml.MarshalWithOptions(File{Provenance: merged}, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	tmp := path + constants.TempSuffix
	if err := os.WriteFile(tmp, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapIO("rename", path, err)
	}
	return nil
}
