package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultExportDir = "./exports"

// ErrInvalidPath is returned for paths that are empty, absolute or leave the
// storage root.
var ErrInvalidPath = errors.New("invalid export path")

// LocalStorage keeps rendered export files on local disk, one directory per
// export.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root when missing.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = defaultExportDir
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve export root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Save writes data through a temporary file and renames it into place so a
// concurrent Open never sees a partial export.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	target, err := s.locate(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("stage export: %w", err)
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", fmt.Errorf("stage export: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", fmt.Errorf("publish export: %w", err)
	}
	return name, nil
}

// Open returns the stored file for reading. The caller closes it.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	target, err := s.locate(name)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

// CleanupOlderThan deletes files last modified before now-ttl, prunes the
// export directories left empty, and reports the removed files relative to
// the root.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string
	emptied := map[string]struct{}{}

	walkErr := filepath.WalkDir(s.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if rel, relErr := filepath.Rel(s.root, p); relErr == nil {
			removed = append(removed, rel)
		}
		if dir := filepath.Dir(p); dir != s.root {
			emptied[dir] = struct{}{}
		}
		return nil
	})
	if walkErr != nil {
		return removed, fmt.Errorf("cleanup exports: %w", walkErr)
	}
	for dir := range emptied {
		// fails harmlessly while the directory still holds fresh files
		os.Remove(dir) //nolint:errcheck
	}
	return removed, nil
}

func (s *LocalStorage) locate(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	target := filepath.Join(s.root, name)
	if !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return target, nil
}
