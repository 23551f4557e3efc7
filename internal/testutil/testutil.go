// Package testutil provides shared test helpers for setting up stores and services.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/quill/internal/kv"
	"github.com/starford/quill/internal/noteservice"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestFS creates a file store in a temporary data directory.
func TestFS(t *testing.T) (string, *kv.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := kv.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestSQLite creates a temporary SQLite store that is closed on cleanup.
func TestSQLite(t *testing.T) *kv.SQLite {
	t.Helper()
	store, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "quill-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestService creates a service over an in-memory store.
func TestService(t *testing.T) (*noteservice.Service, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	return noteservice.NewService(store, Logger()), store
}
