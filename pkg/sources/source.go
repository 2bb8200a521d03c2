// Package sources defines the boundary between source adapters and the
// reconciliation engine. An adapter reads some external description of a
// catalog (a registry, a spec file, a manifest) and yields normalized
// revisions; everything after that is the engine's job.
//
// Example usage:
//
//	src := manifest.New(manifest.WithPaths("catalog.yaml"))
//	revs, err := sources.Collect(ctx, src)
//	if err != nil {
//	    log.Fatal(err)
//	}
package sources

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// ID represents the identifier of a data source.
type ID string

// String returns the string representation of a source id.
func (id ID) String() string {
	return string(id)
}

// Source produces revisions for the engine.
type Source interface {
	// ID returns the identifier of this source
	ID() ID

	// Fetch returns the revisions this source currently describes. Each
	// revision must declare IsLatest; the engine trusts it.
	Fetch(ctx context.Context) ([]catalogs.Revision, error)

	// Cleanup releases any resources (called after all Fetch operations)
	Cleanup() error
}

// Sources is a thread-safe container for managing multiple data sources.
type Sources struct {
	mu      sync.RWMutex
	sources map[ID]Source
}

// NewSources creates a new Sources instance.
func NewSources(srcs ...Source) *Sources {
	s := &Sources{sources: make(map[ID]Source, len(srcs))}
	for _, src := range srcs {
		s.sources[src.ID()] = src
	}
	return s
}

// Get returns a source by ID.
func (s *Sources) Get(id ID) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, found := s.sources[id]
	return src, found
}

// Set sets a source by ID.
func (s *Sources) Set(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID()] = src
}

// Delete deletes a source by ID.
func (s *Sources) Delete(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
}

// Len returns the number of sources.
func (s *Sources) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// List returns all sources ordered by id.
func (s *Sources) List() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Collect fetches every source concurrently and concatenates their
// revisions in source order. Revisions without a Source are stamped with
// the id of the source that produced them. Cleanup runs for every source.
func Collect(ctx context.Context, srcs ...Source) ([]catalogs.Revision, error) {
	results := make([][]catalogs.Revision, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			revs, err := src.Fetch(gctx)
			if err != nil {
				return errors.NewSyncError(src.ID().String(), err)
			}
			for j := range revs {
				if revs[j].Source == "" {
					revs[j].Source = src.ID().String()
				}
			}
			results[i] = revs
			return nil
		})
	}
	err := g.Wait()

	for _, src := range srcs {
		if cerr := src.Cleanup(); cerr != nil && err == nil {
			err = errors.NewSyncError(src.ID().String(), cerr)
		}
	}
	if err != nil {
		return nil, err
	}

	var out []catalogs.Revision
	for _, revs := range results {
		out = append(out, revs...)
	}
	return out, nil
}
