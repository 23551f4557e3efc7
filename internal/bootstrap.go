package internal

import (
	"fmt"
	"log/slog"

	"github.com/starford/quill/internal/kv"
	"github.com/starford/quill/internal/noteservice"
)

// OpenStore opens the backend selected by cfg. The returned close function
// must be called once the store is no longer used.
func OpenStore(cfg StorageConfig) (kv.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case StorageFS:
		store, err := kv.NewFS(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		return store, noop, nil
	case StorageSQLite:
		store, err := kv.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		return store, store.Close, nil
	case StorageMemory:
		return kv.NewMemory(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// OpenService opens the configured store and loads a service over it.
func OpenService(cfg StorageConfig, logger *slog.Logger) (*noteservice.Service, kv.Store, func() error, error) {
	store, closeFn, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return noteservice.NewService(store, logger), store, closeFn, nil
}
