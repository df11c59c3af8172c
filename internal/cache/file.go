package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileCache is an ExternalCache that persists records as files in a
// directory, one file per cache key. Writes are atomic (temp file + rename)
// so a concurrent reader never observes a torn record.
type FileCache struct {
	dir string
}

// NewFileCache creates a FileCache rooted at dir, creating the directory if
// needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (f *FileCache) path(key string) string {
	return filepath.Join(f.dir, key+".cache")
}

// Get reads the blob stored for key. A missing file is reported as absent,
// not as an error.
func (f *FileCache) Get(ctx context.Context, key string) (string, bool, error) {
	blob, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cache file: %w", err)
	}
	return string(blob), true, nil
}

// Set writes the blob for key atomically.
func (f *FileCache) Set(ctx context.Context, key string, value string) error {
	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
