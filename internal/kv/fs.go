package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/checksum"
)

const (
	fileExt    = ".json"
	tempPrefix = ".quill-tmp-"
)

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FS implements Store with one JSON file per key under a data directory.
type FS struct {
	root string // absolute path to the data directory

	mu      sync.Mutex
	written map[string]string // key -> checksum of our own last write
}

// NewFS creates a file store rooted at dir, creating the directory if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kv: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kv: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kv: root is not a directory: %s", abs)
	}
	return &FS{root: abs, written: make(map[string]string)}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

// path maps a key to its file. Keys are plain names; anything that could
// address a file outside root is rejected.
func (f *FS) path(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", fmt.Errorf("kv: invalid key %q", key)
	}
	return filepath.Join(f.root, key+fileExt), nil
}

// keyFor is the inverse of path. ok is false for temp files and foreign names.
func keyFor(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, tempPrefix) || !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(base, fileExt)
	return key, keyRe.MatchString(key)
}

// Get reads the file stored for key.
func (f *FS) Get(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("kv: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return data, nil
}

// Set atomically writes value: tmp file → fsync → rename.
func (f *FS) Set(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("kv: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("kv: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kv: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp: %w", err)
	}

	// Record before the rename so the watcher never sees an unknown write.
	f.remember(key, value)
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("kv: rename: %w", err)
	}
	success = true
	return nil
}

func (f *FS) remember(key string, value []byte) {
	f.mu.Lock()
	f.written[key] = checksum.Sum(value)
	f.mu.Unlock()
}

// ownWrite reports whether data is exactly what this process last wrote for key.
func (f *FS) ownWrite(key string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[key] == checksum.Sum(data)
}

var _ Store = (*FS)(nil)
