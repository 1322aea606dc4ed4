package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalObjectStore implements ObjectStore on a local filesystem tree.
// Used in deployments without object storage and as the archive target
// in tests; keys map directly to file paths under the base directory.
type LocalObjectStore struct {
	fs      afero.Fs
	baseDir string
}

// NewLocalObjectStore creates a filesystem-backed object store rooted
// at baseDir.
func NewLocalObjectStore(fsys afero.Fs, baseDir string) *LocalObjectStore {
	return &LocalObjectStore{fs: fsys, baseDir: baseDir}
}

// Get returns the content of the object at key.
func (s *LocalObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return content, nil
}

// Put writes content at key, creating parent directories as needed.
func (s *LocalObjectStore) Put(_ context.Context, key string, content []byte) error {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
