package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// writeFileAtomic writes data to a temporary sibling and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + constants.TempSuffix
	if err := os.WriteFile(tmp, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapIO("rename", tmp, err)
	}
	return nil
}

// writeSnapshot writes attachments first and the index last, so a
// directory with an index always holds a complete snapshot. With
// removeStale, attachments not carried by e are deleted.
func writeSnapshot(dir string, e *catalogs.Entity, removeStale bool) error {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}
	index, err := Encode(e)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(e.Files))
	for name := range e.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeFileAtomic(filepath.Join(dir, name), e.Files[name]); err != nil {
			return err
		}
	}

	if removeStale {
		existing, err := attachmentNames(dir)
		if err != nil {
			return err
		}
		for _, name := range existing {
			if _, keep := e.Files[name]; keep {
				continue
			}
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.WrapIO("remove", path, err)
			}
		}
	}

	return writeFileAtomic(filepath.Join(dir, constants.IndexFile), index)
}

// moveSnapshot renames the attachments and then the index from src into
// dst. Files already present in dst are left untouched. Subdirectories
// (archives, nested services) never move.
func moveSnapshot(src, dst string) error {
	names, err := attachmentNames(src)
	if err != nil {
		return err
	}
	if isFile(filepath.Join(src, constants.IndexFile)) {
		names = append(names, constants.IndexFile)
	}
	for _, name := range names {
		from := filepath.Join(src, name)
		to := filepath.Join(dst, name)
		if isFile(to) {
			continue
		}
		if err := os.Rename(from, to); err != nil {
			return errors.WrapIO("rename", from, err)
		}
	}
	return nil
}

// attachmentNames lists the regular files in dir other than the index,
// hidden files and temporary files.
func attachmentNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", dir, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || name == constants.IndexFile ||
			strings.HasPrefix(name, ".") || strings.HasSuffix(name, constants.TempSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func removeTempFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapIO("read", dir, err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), constants.TempSuffix) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.WrapIO("remove", path, err)
			}
		}
	}
	return nil
}

// entityDirs lists the visible subdirectories of dir.
func entityDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", dir, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
