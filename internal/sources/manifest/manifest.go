// Package manifest provides a source that reads revisions from YAML or JSON
// manifest files.
//
// A manifest lists revisions in the order the producer emitted them:
//
//	source: asyncapi
//	revisions:
//	  - kind: event
//	    id: OrderPlaced
//	    version: 1.0.0
//	    latest: true
//	    fields:
//	      name: Order placed
//	    channels:
//	      - id: orders
//	    schemaFile: schemas/order-placed.json
//
// When `latest` is omitted, the last revision listed for an entity in a
// file is taken as its latest.
package manifest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/logging"
	"github.com/agentstation/catalogsync/pkg/sources"
)

// DefaultID is the source id used when neither the option nor the file names one.
const DefaultID sources.ID = "manifest"

// Source loads revisions from manifest files or directories of them.
type Source struct {
	id    sources.ID
	paths []string
}

// New creates a new manifest source.
func New(opts ...Option) *Source {
	s := &Source{id: DefaultID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a manifest source.
type Option func(*Source)

// WithPaths adds manifest files or directories. Directories are walked
// for .yaml, .yml and .json files.
func WithPaths(paths ...string) Option {
	return func(s *Source) {
		s.paths = append(s.paths, paths...)
	}
}

// WithID sets the source id stamped on revisions whose file names none.
func WithID(id sources.ID) Option {
	return func(s *Source) {
		s.id = id
	}
}

// ID returns the id of this source.
func (s *Source) ID() sources.ID {
	return s.id
}

// Fetch reads every configured manifest in path order.
func (s *Source) Fetch(ctx context.Context) ([]catalogs.Revision, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)

	var out []catalogs.Revision
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		revs, err := s.load(file)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("file", file).
			Int("revisions", len(revs)).
			Msg("Loaded manifest")
		out = append(out, revs...)
	}
	return out, nil
}

// Cleanup releases any resources.
func (s *Source) Cleanup() error {
	return nil
}

// files expands the configured paths into a list of manifest files.
func (s *Source) files() ([]string, error) {
	if len(s.paths) == 0 {
		return nil, errors.NewConfigError("manifest", "no manifest paths configured", nil)
	}
	var out []string
	for _, path := range s.paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.WrapIO("stat", path, err)
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isManifest(p) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.WrapIO("walk", path, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func isManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// load parses one manifest file.
func (s *Source) load(path string) ([]catalogs.Revision, error) {
	data, err := os.ReadFile(path) //nolint:gosec // manifest paths come from the operator
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	source := doc.Source
	if source == "" {
		source = s.id.String()
	}

	dir := filepath.Dir(path)
	last := make(map[catalogs.Key]int, len(doc.Revisions))
	revs := make([]catalogs.Revision, 0, len(doc.Revisions))
	for i, entry := range doc.Revisions {
		rev, err := entry.revision(source)
		if err != nil {
			return nil, errors.WrapParse("manifest", path, err)
		}
		if entry.SchemaFile != "" {
			s.attachSchema(&rev, dir, entry.SchemaFile)
		}
		last[rev.Key()] = i
		revs = append(revs, rev)
	}

	for i := range revs {
		if doc.Revisions[i].Latest == nil {
			revs[i].IsLatest = last[revs[i].Key()] == i
		}
	}
	return revs, nil
}

// attachSchema reads a schema document into the revision's files. A schema
// that cannot be read is reported as a warning and the revision proceeds
// without it.
func (s *Source) attachSchema(rev *catalogs.Revision, dir, file string) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, file)
	}
	data, err := os.ReadFile(path) //nolint:gosec // schema paths come from the manifest author
	if err != nil {
		rev.Warnings = append(rev.Warnings,
			errors.NewEnrichmentError(rev.Source, rev.ID, "schema", errors.WrapIO("read", path, err)))
		return
	}

	name := filepath.Base(path)
	if rev.Files == nil {
		rev.Files = make(map[string][]byte)
	}
	rev.Files[name] = data
	if rev.SourceFields == nil {
		rev.SourceFields = catalogs.Fields{}
	}
	if _, ok := rev.SourceFields[catalogs.FieldSchemaPath]; !ok {
		rev.SourceFields[catalogs.FieldSchemaPath] = name
	}
}
