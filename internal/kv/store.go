// Package kv is Quill's persistence adapter: a small key-value abstraction
// with file, SQLite and in-memory backends.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/quill/internal/apperr"
)

// Well-known keys.
const (
	KeyNotes    = "notes"
	KeyDarkMode = "isDarkMode"
)

// Store is the interface for key-value persistence.
type Store interface {
	// Get returns the last value written under key.
	// It returns an error wrapping apperr.ErrNotFound if key was never written.
	Get(key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(key string, value []byte) error
}

// Lookup decodes the JSON value under key into a T. A missing key yields an
// error wrapping apperr.ErrNotFound; read and decode failures are returned
// unchanged so callers can tell "gone" from "broken".
func Lookup[T any](s Store, key string) (T, error) {
	var v T
	data, err := s.Get(key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return v, nil
}

// Load is Lookup for callers that only need a value or nothing. A missing key
// or an undecodable value yields the zero T and false; failures are logged,
// never returned.
func Load[T any](s Store, key string, logger *slog.Logger) (T, bool) {
	v, err := Lookup[T](s, key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("kv: load failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return v, false
	}
	return v, true
}

// Save encodes v as JSON and writes it wholesale under key.
func Save(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(key, data)
}
