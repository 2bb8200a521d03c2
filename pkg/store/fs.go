// Package store implements the versioned entity store.
//
// The filesystem layout is
//
//	<root>/<plural>/<id>/index.md                    current revision
//	<root>/<plural>/<id>/<attachment>                current attachments
//	<root>/<plural>/<id>/versioned/<version>/...     archived snapshots
//	<root>/domains/<domain>/services/<id>/...        services nested under a domain
//
// Every mutation ends in a rename so that an interrupted run leaves either
// the old or the new state behind. Archive moves a snapshot through a
// staging directory; leftovers are rolled back or forward the next time a
// writable store touches the entity.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// writePrefix marks an archive slot being written by PutArchived.
const writePrefix = ".write-"

// FS is a filesystem-backed catalog store.
type FS struct {
	root string
	opts *options
}

var _ catalogs.Store = (*FS)(nil)

// NewFS opens a store rooted at root, creating the directory unless the
// store is read-only.
func NewFS(root string, opts ...Option) (*FS, error) {
	if root == "" {
		return nil, errors.NewConfigError("store", "catalog root is required", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapIO("resolve", root, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if !o.readOnly {
		if err := os.MkdirAll(abs, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("mkdir", abs, err)
		}
	}
	return &FS{root: abs, opts: o}, nil
}

// Root returns the absolute catalog root.
func (s *FS) Root() string {
	return s.root
}

// Path returns the directory holding key, if it exists.
func (s *FS) Path(key catalogs.Key) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	return s.locate(key)
}

// Get implements catalogs.Store.
func (s *FS) Get(ctx context.Context, key catalogs.Key, version string) (*catalogs.Entity, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	dir, found, err := s.locate(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFoundError(key.Resource(), key.ID)
	}
	if err := s.recover(ctx, dir); err != nil {
		return nil, err
	}

	if version == "" || version == constants.LatestVersion {
		cur, err := s.current(dir, key)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, errors.NewNotFoundError(key.Resource(), key.ID)
		}
		return cur, nil
	}

	if err := catalogs.ValidateSegment("version", version); err != nil {
		return nil, err
	}
	snap := filepath.Join(dir, constants.VersionedDir, version)
	if !isDir(snap) {
		return nil, errors.NewVersionNotFoundError(key.Resource(), key.ID, version)
	}
	return s.readEntity(snap, key)
}

// Put implements catalogs.Store.
func (s *FS) Put(ctx context.Context, e *catalogs.Entity, opts catalogs.PutOptions) error {
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	key := e.Key()
	if err := validateEntity(e); err != nil {
		return err
	}
	dir, err := s.placement(e)
	if err != nil {
		return err
	}
	if err := s.recover(ctx, dir); err != nil {
		return err
	}

	cur, err := s.current(dir, key)
	if err != nil {
		return err
	}
	if cur != nil && cur.Version != e.Version && !opts.OverwriteCurrent {
		return errors.NewConflictError(key.Resource(), key.ID, cur.Version, e.Version)
	}
	if isDir(filepath.Join(dir, constants.VersionedDir, e.Version)) {
		conflict := errors.NewConflictError(key.Resource(), key.ID, currentVersion(cur), e.Version)
		conflict.Message = "version is already archived"
		return conflict
	}
	return writeSnapshot(dir, e, true)
}

// Archive implements catalogs.Store.
func (s *FS) Archive(ctx context.Context, key catalogs.Key, version string) error {
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := catalogs.ValidateSegment("version", version); err != nil {
		return err
	}
	dir, found, err := s.locate(key)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFoundError(key.Resource(), key.ID)
	}
	if err := s.recover(ctx, dir); err != nil {
		return err
	}

	cur, err := s.current(dir, key)
	if err != nil {
		return err
	}
	if cur == nil {
		return errors.NewNotFoundError(key.Resource(), key.ID)
	}
	if cur.Version != version {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, version)
		conflict.Message = "only the current version can be archived"
		return conflict
	}

	versioned := filepath.Join(dir, constants.VersionedDir)
	target := filepath.Join(versioned, version)
	if isDir(target) {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, version)
		conflict.Message = "archive slot occupied"
		return conflict
	}

	staging := filepath.Join(versioned, constants.StagingPrefix+version)
	if err := os.MkdirAll(staging, constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", staging, err)
	}
	if err := moveSnapshot(dir, staging); err != nil {
		return err
	}
	if err := os.Rename(staging, target); err != nil {
		return errors.WrapIO("rename", staging, err)
	}
	return nil
}

// PutArchived implements catalogs.Store.
func (s *FS) PutArchived(ctx context.Context, e *catalogs.Entity) error {
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	key := e.Key()
	if err := validateEntity(e); err != nil {
		return err
	}
	dir, err := s.placement(e)
	if err != nil {
		return err
	}
	if err := s.recover(ctx, dir); err != nil {
		return err
	}

	cur, err := s.current(dir, key)
	if err != nil {
		return err
	}
	if cur != nil && cur.Version == e.Version {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, e.Version)
		conflict.Message = "version is current and cannot be archived"
		return conflict
	}

	versioned := filepath.Join(dir, constants.VersionedDir)
	target := filepath.Join(versioned, e.Version)
	if isDir(target) {
		conflict := errors.NewConflictError(key.Resource(), key.ID, currentVersion(cur), e.Version)
		conflict.Message = "archive slot occupied"
		return conflict
	}

	tmp := filepath.Join(versioned, writePrefix+e.Version)
	if err := os.RemoveAll(tmp); err != nil {
		return errors.WrapIO("remove", tmp, err)
	}
	if err := writeSnapshot(tmp, e, false); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.WrapIO("rename", tmp, err)
	}
	return nil
}

// ListArchived implements catalogs.Store.
func (s *FS) ListArchived(ctx context.Context, key catalogs.Key) ([]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	dir, found, err := s.locate(key)
	if err != nil || !found {
		return nil, err
	}
	if err := s.recover(ctx, dir); err != nil {
		return nil, err
	}

	versioned := filepath.Join(dir, constants.VersionedDir)
	entries, err := os.ReadDir(versioned)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", versioned, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Restore implements catalogs.Store.
func (s *FS) Restore(ctx context.Context, key catalogs.Key, version string) error {
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := catalogs.ValidateSegment("version", version); err != nil {
		return err
	}
	dir, found, err := s.locate(key)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFoundError(key.Resource(), key.ID)
	}
	if err := s.recover(ctx, dir); err != nil {
		return err
	}

	cur, err := s.current(dir, key)
	if err != nil {
		return err
	}
	if cur != nil {
		conflict := errors.NewConflictError(key.Resource(), key.ID, cur.Version, version)
		conflict.Message = "a current revision exists"
		return conflict
	}

	versioned := filepath.Join(dir, constants.VersionedDir)
	src := filepath.Join(versioned, version)
	if !isDir(src) {
		return errors.NewVersionNotFoundError(key.Resource(), key.ID, version)
	}
	tmp := filepath.Join(versioned, constants.RestorePrefix+version)
	if err := os.Rename(src, tmp); err != nil {
		return errors.WrapIO("rename", src, err)
	}
	if err := moveSnapshot(tmp, dir); err != nil {
		return err
	}
	if err := os.RemoveAll(tmp); err != nil {
		return errors.WrapIO("remove", tmp, err)
	}
	return nil
}

// List implements catalogs.Store.
func (s *FS) List(_ context.Context) ([]catalogs.Key, error) {
	seen := make(map[catalogs.Key]bool)
	var keys []catalogs.Key
	add := func(key catalogs.Key) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	type location struct {
		kind catalogs.Kind
		mt   catalogs.MessageType
	}
	locations := []location{
		{catalogs.KindDomain, ""},
		{catalogs.KindService, ""},
		{catalogs.KindChannel, ""},
	}
	for _, mt := range catalogs.MessageTypes() {
		locations = append(locations, location{catalogs.KindMessage, mt})
	}

	for _, loc := range locations {
		plural, _ := catalogs.PluralPath(loc.kind, loc.mt)
		ids, err := entityDirs(filepath.Join(s.root, plural))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			add(catalogs.Key{Kind: loc.kind, MessageType: loc.mt, ID: id})
			if loc.kind != catalogs.KindDomain {
				continue
			}
			nested, err := entityDirs(filepath.Join(s.root, plural, id, constants.NestedServicesDir))
			if err != nil {
				return nil, err
			}
			for _, sid := range nested {
				add(catalogs.Key{Kind: catalogs.KindService, ID: sid})
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

// Recover completes or rolls back any interrupted archive, restore or
// archive write for key.
func (s *FS) Recover(ctx context.Context, key catalogs.Key) error {
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	dir, found, err := s.locate(key)
	if err != nil || !found {
		return err
	}
	return s.recover(ctx, dir)
}

// Pending reports leftover staging, restore or write directories for key.
func (s *FS) Pending(key catalogs.Key) ([]string, error) {
	dir, found, err := s.Path(key)
	if err != nil || !found {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, constants.VersionedDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), ".") {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

func (s *FS) checkWritable(ctx context.Context) error {
	if s.opts.readOnly {
		return fmt.Errorf("catalog store at %s: %w", s.root, errors.ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return nil
}

// locate finds the existing directory for key. Top-level services take
// precedence over services nested under a domain.
func (s *FS) locate(key catalogs.Key) (string, bool, error) {
	plural, err := catalogs.PluralPath(key.Kind, key.MessageType)
	if err != nil {
		return "", false, err
	}
	dir := filepath.Join(s.root, plural, key.ID)
	if isDir(dir) {
		return dir, true, nil
	}
	if key.Kind != catalogs.KindService {
		return dir, false, nil
	}

	domains, err := entityDirs(filepath.Join(s.root, "domains"))
	if err != nil {
		return "", false, err
	}
	for _, d := range domains {
		nested := filepath.Join(s.root, "domains", d, constants.NestedServicesDir, key.ID)
		if isDir(nested) {
			return nested, true, nil
		}
	}
	return dir, false, nil
}

// placement returns the directory an entity is written to: its existing
// location, or a new one derived from its kind and parent domain.
func (s *FS) placement(e *catalogs.Entity) (string, error) {
	dir, found, err := s.locate(e.Key())
	if err != nil || found {
		return dir, err
	}
	if e.Kind == catalogs.KindService && s.opts.nest && e.Relationships.Domain != nil {
		domainID := e.Relationships.Domain.ID
		if err := catalogs.ValidateSegment("domain", domainID); err != nil {
			return "", err
		}
		return filepath.Join(s.root, "domains", domainID, constants.NestedServicesDir, e.ID), nil
	}
	return dir, nil
}

// current reads the current revision in dir, or returns nil when there is none.
func (s *FS) current(dir string, key catalogs.Key) (*catalogs.Entity, error) {
	if !isFile(filepath.Join(dir, constants.IndexFile)) {
		return nil, nil
	}
	return s.readEntity(dir, key)
}

func (s *FS) readEntity(dir string, key catalogs.Key) (*catalogs.Entity, error) {
	index := filepath.Join(dir, constants.IndexFile)
	data, err := os.ReadFile(index) //nolint:gosec // path is built from validated segments
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(key.Resource(), key.ID)
		}
		return nil, errors.WrapIO("read", index, err)
	}
	e, err := Decode(data, key, s.opts.policy, index)
	if err != nil {
		return nil, err
	}

	names, err := attachmentNames(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path) //nolint:gosec // path is built from validated segments
		if err != nil {
			return nil, errors.WrapIO("read", path, err)
		}
		if e.Files == nil {
			e.Files = make(map[string][]byte, len(names))
		}
		e.Files[name] = content
	}
	return e, nil
}

// recover rolls interrupted operations in dir forward or back. Archive
// staging is rolled back while the current index is still in place, and
// forward once the index has moved. Restores and archive writes are only
// ever rolled forward when complete.
func (s *FS) recover(_ context.Context, dir string) error {
	if s.opts.readOnly {
		return nil
	}
	if err := removeTempFiles(dir); err != nil {
		return err
	}

	versioned := filepath.Join(dir, constants.VersionedDir)
	entries, err := os.ReadDir(versioned)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapIO("read", versioned, err)
	}

	hasCurrent := isFile(filepath.Join(dir, constants.IndexFile))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(versioned, name)

		switch {
		case strings.HasPrefix(name, constants.StagingPrefix):
			version := strings.TrimPrefix(name, constants.StagingPrefix)
			target := filepath.Join(versioned, version)
			if !hasCurrent && isFile(filepath.Join(path, constants.IndexFile)) && !isDir(target) {
				if err := os.Rename(path, target); err != nil {
					return errors.WrapIO("rename", path, err)
				}
				continue
			}
			if err := moveSnapshot(path, dir); err != nil {
				return err
			}
			hasCurrent = isFile(filepath.Join(dir, constants.IndexFile))

		case strings.HasPrefix(name, constants.RestorePrefix):
			if !hasCurrent {
				if err := moveSnapshot(path, dir); err != nil {
					return err
				}
				hasCurrent = isFile(filepath.Join(dir, constants.IndexFile))
			}

		case strings.HasPrefix(name, writePrefix):
			version := strings.TrimPrefix(name, writePrefix)
			target := filepath.Join(versioned, version)
			if isFile(filepath.Join(path, constants.IndexFile)) && !isDir(target) {
				if err := os.Rename(path, target); err != nil {
					return errors.WrapIO("rename", path, err)
				}
				continue
			}

		default:
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			return errors.WrapIO("remove", path, err)
		}
	}
	return nil
}

func validateKey(key catalogs.Key) error {
	if _, err := catalogs.PluralPath(key.Kind, key.MessageType); err != nil {
		return err
	}
	return catalogs.ValidateSegment("id", key.ID)
}

func validateEntity(e *catalogs.Entity) error {
	if err := validateKey(e.Key()); err != nil {
		return err
	}
	if err := catalogs.ValidateSegment("version", e.Version); err != nil {
		return err
	}
	for name := range e.Files {
		if err := catalogs.ValidateSegment("file", name); err != nil {
			return err
		}
		if name == constants.IndexFile || strings.HasSuffix(name, constants.TempSuffix) {
			return errors.NewValidationError("file", name, "reserved file name")
		}
	}
	return nil
}

func currentVersion(e *catalogs.Entity) string {
	if e == nil {
		return ""
	}
	return e.Version
}
