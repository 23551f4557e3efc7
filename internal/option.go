package internal

import "github.com/starford/quill/internal/kv"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	store  kv.Store
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore uses store instead of opening the one named in the configuration.
func WithStore(store kv.Store) Option {
	return func(a *application) {
		a.store = store
	}
}
