package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lebanonrates/backend/internal/domain"
	"github.com/spf13/afero"
)

// FileCache persists one JSON document per key so cached data survives restarts.
// Writes go to a temp file in the same directory and are renamed into place.
type FileCache struct {
	fs  afero.Fs
	dir string
}

// NewFileCache creates a file-backed entry store rooted at dir
func NewFileCache(fs afero.Fs, dir string) *FileCache {
	return &FileCache{fs: fs, dir: dir}
}

func (c *FileCache) filePath(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".json")
}

// sanitizeKey keeps keys from escaping the cache directory
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

// Read loads the entry for key. Missing files are a cache miss; undecodable ones are corrupt.
func (c *FileCache) Read(ctx context.Context, key string) (*domain.CacheEntry, error) {
	contents, err := afero.ReadFile(c.fs, c.filePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("read cache file %s: %w", key, err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(contents, &entry); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, key, err)
	}
	if entry.FetchedAt.IsZero() || len(entry.Data) == 0 || string(entry.Data) == "null" {
		return nil, fmt.Errorf("%w: %s: missing data or timestamp", domain.ErrCacheCorrupt, key)
	}
	return &entry, nil
}

// Write atomically replaces the entry for key
func (c *FileCache) Write(ctx context.Context, key string, entry domain.CacheEntry) error {
	if err := c.fs.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	contents, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	tmp, err := afero.TempFile(c.fs, c.dir, sanitizeKey(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := c.fs.Rename(tmpName, c.filePath(key)); err != nil {
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Delete removes the entry for key; a missing file is not an error
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := c.fs.Remove(c.filePath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file %s: %w", key, err)
	}
	return nil
}
