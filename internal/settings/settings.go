// Package settings holds the user preferences persisted next to the notes.
package settings

import (
	"errors"
	"log/slog"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/kv"
)

// Settings is the process-wide preference state. Create it once at startup
// with Load and pass it to whoever needs it.
type Settings struct {
	store  kv.Store
	logger *slog.Logger

	darkMode bool
}

// Load reads the persisted preferences; missing or unreadable values fall
// back to defaults (dark mode off).
func Load(store kv.Store, logger *slog.Logger) *Settings {
	s := &Settings{store: store, logger: logger}
	s.darkMode, _ = kv.Load[bool](store, kv.KeyDarkMode, logger)
	return s
}

// Reload re-reads every preference from storage after an external change.
// A removed value resets to the default; an unreadable one keeps the current
// value. Reload reports whether anything was re-read.
func (s *Settings) Reload() bool {
	on, err := kv.Lookup[bool](s.store, kv.KeyDarkMode)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		s.darkMode = false
	case err != nil:
		s.logger.Warn("settings: reload skipped", slog.String("error", err.Error()))
		return false
	default:
		s.darkMode = on
	}
	return true
}

// DarkMode reports whether the dark theme is selected.
func (s *Settings) DarkMode() bool {
	return s.darkMode
}

// SetDarkMode updates the flag and writes it through. The in-memory value
// changes even when the write fails; the error is returned for logging.
func (s *Settings) SetDarkMode(on bool) error {
	s.darkMode = on
	return kv.Save(s.store, kv.KeyDarkMode, on)
}
