package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// Memory is an in-memory store. With a base store it acts as an overlay:
// each key is copied from the base on first access and every mutation
// stays in memory, which is how dry runs see their own writes without
// touching disk.
type Memory struct {
	mu      sync.Mutex
	base    catalogs.Store
	loaded  map[catalogs.Key]bool
	current map[catalogs.Key]*catalogs.Entity
	archive map[catalogs.Key]map[string]*catalogs.Entity
}

var _ catalogs.Store = (*Memory)(nil)

// NewMemory creates an in-memory store over an optional base store.
func NewMemory(base catalogs.Store) *Memory {
	return &Memory{
		base:    base,
		loaded:  make(map[catalogs.Key]bool),
		current: make(map[catalogs.Key]*catalogs.Entity),
		archive: make(map[catalogs.Key]map[string]*catalogs.Entity),
	}
}

// load copies key from the base store. Callers hold m.mu.
func (m *Memory) load(ctx context.Context, key catalogs.Key) error {
	if m.loaded[key] {
		return nil
	}
	m.loaded[key] = true
	if m.base == nil {
		return nil
	}

	cur, err := m.base.Get(ctx, key, constants.LatestVersion)
	switch {
	case err == nil:
		m.current[key] = cur
	case !errors.IsNotFound(err):
		m.loaded[key] = false
		return err
	}

	versions, err := m.base.ListArchived(ctx, key)
	if err != nil {
		m.loaded[key] = false
		return err
	}
	for _, v := range versions {
		snap, err := m.base.Get(ctx, key, v)
		if err != nil {
			m.loaded[key] = false
			return err
		}
		m.slot(key)[v] = snap
	}
	return nil
}

func (m *Memory) slot(key catalogs.Key) map[string]*catalogs.Entity {
	a, ok := m.archive[key]
	if !ok {
		a = make(map[string]*catalogs.Entity)
		m.archive[key] = a
	}
	return a
}

// Get implements catalogs.Store.
func (m *Memory) Get(ctx context.Context, key catalogs.Key, version string) (*catalogs.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx, key); err != nil {
		return nil, err
	}
	if version == "" || version == constants.LatestVersion {
		cur, ok := m.current[key]
		if !ok {
			return nil, errors.NewNotFoundError(key.Resource(), key.ID)
		}
		return cur.Clone(), nil
	}
	snap, ok := m.archive[key][version]
	if !ok {
		return nil, errors.NewVersionNotFoundError(key.Resource(), key.ID, version)
	}
	return snap.Clone(), nil
}

// Put implements catalogs.Store.
func (m *Memory) Put(ctx context.Context, e *catalogs.Entity, opts catalogs.PutOptions) error {
	if err := validateEntity(e); err != nil {
		return err
	}
	key := e.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx, key); err != nil {
		return err
	}

	cur := m.current[key]
	if cur != nil && cur.Version != e.Version && !opts.OverwriteCurrent {
		return errors.NewConflictError(key.Resource(), key.ID, cur.Version, e.Version)
	}
	if _, ok := m.archive[key][e.Version]; ok {
		conflict := errors.NewConflictError(key.Resource(), key.ID, currentVersion(cur), e.Version)
		conflict.Message = "version is already archived"
		return conflict
	}
	m.current[key] = e.Clone()
	return nil
}

// Archive implements catalogs.Store.
func (m *Memory) Archive(ctx context.Context, key catalogs.Key, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx, key); err != nil {
		return err
	}

	cur, ok := m.current[key]
	if !ok {
		return errors.NewNotFoundError(key.Resource(), key.ID)
	}
	if cur.Version != version {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, version)
		conflict.Message = "only the current version can be archived"
		return conflict
	}
	if _, ok := m.archive[key][version]; ok {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, version)
		conflict.Message = "archive slot occupied"
		return conflict
	}
	m.slot(key)[version] = cur
	delete(m.current, key)
	return nil
}

// PutArchived implements catalogs.Store.
func (m *Memory) PutArchived(ctx context.Context, e *catalogs.Entity) error {
	if err := validateEntity(e); err != nil {
		return err
	}
	key := e.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx, key); err != nil {
		return err
	}

	cur := m.current[key]
	if cur != nil && cur.Version == e.Version {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, e.Version)
		conflict.Message = "version is current and cannot be archived"
		return conflict
	}
	if _, ok := m.archive[key][e.Version]; ok {
		conflict := errors.NewConflictError(key.Resource(), key.ID, currentVersion(cur), e.Version)
		conflict.Message = "archive slot occupied"
		return conflict
	}
	m.slot(key)[e.Version] = e.Clone()
	return nil
}

// ListArchived implements catalogs.Store.
func (m *Memory) ListArchived(ctx context.Context, key catalogs.Key) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx, key); err != nil {
		return nil, err
	}
	var out []string
	for v := range m.archive[key] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Restore implements catalogs.Store.
func (m *Memory) Restore(ctx context.Context, key catalogs.Key, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx, key); err != nil {
		return err
	}
	if cur, ok := m.current[key]; ok {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, version)
		conflict.Message = "a current revision exists"
		return conflict
	}
	snap, ok := m.archive[key][version]
	if !ok {
		return errors.NewVersionNotFoundError(key.Resource(), key.ID, version)
	}
	m.current[key] = snap
	delete(m.archive[key], version)
	return nil
}

// List implements catalogs.Store.
func (m *Memory) List(ctx context.Context) ([]catalogs.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[catalogs.Key]bool)
	if m.base != nil {
		keys, err := m.base.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			seen[k] = true
		}
	}
	for k := range m.current {
		seen[k] = true
	}
	for k, a := range m.archive {
		if len(a) > 0 {
			seen[k] = true
		}
	}

	keys := make([]catalogs.Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}
