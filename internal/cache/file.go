package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rootsploit/deepx/internal/subdomain"
)

// FileStore keeps one JSON document per key under a directory. Writes go to
// a temp file that is renamed over the target, so a reader sees either the
// old or the new document.
type FileStore struct {
	base
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, ttl time.Duration, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{base: newBase(ttl, opts), dir: dir}, nil
}

func (f *FileStore) path(key Key) string {
	return filepath.Join(f.dir, key.ID()+".json")
}

// Get treats unreadable or corrupt documents as misses.
func (f *FileStore) Get(_ context.Context, key Key) (subdomain.Set, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if f.expired(e.CreatedAt) {
		return nil, false, nil
	}
	return subdomain.NewSet(e.Hostnames...), true, nil
}

func (f *FileStore) Put(_ context.Context, key Key, hosts subdomain.Set) error {
	data, err := json.MarshalIndent(newEntry(key, hosts, f.now()), "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) PurgeExpired(ctx context.Context) (int, error) {
	n := 0
	err := f.walk(func(path string, e *entry) {
		if e == nil || f.expired(e.CreatedAt) {
			if os.Remove(path) == nil {
				n++
			}
		}
	})
	return n, err
}

func (f *FileStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "file"}
	err := f.walk(func(_ string, e *entry) {
		st.Total++
		if e == nil || f.expired(e.CreatedAt) {
			st.Expired++
		}
	})
	return st, err
}

// walk calls fn for every cache document. Corrupt documents are passed as nil.
func (f *FileStore) walk(fn func(path string, e *entry)) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("list cache directory: %w", err)
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(f.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		if json.Unmarshal(data, &e) != nil {
			fn(path, nil)
			continue
		}
		fn(path, &e)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
