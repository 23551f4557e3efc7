// Package noteservice is the presentation-facing facade over the note
// repository and the user preferences. It serialises access so the HTTP API,
// the MCP server and the storage watcher can share one working set.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/kv"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notes"
	"github.com/starford/quill/internal/settings"
)

// Event kinds published to subscribers.
const (
	EventNoteCreated        = "note.created"
	EventNoteUpdated        = "note.updated"
	EventNotePinned         = "note.pinned"
	EventNoteDeleted        = "note.deleted"
	EventNotesReloaded      = "notes.reloaded"
	EventPreferencesUpdated = "preferences.updated"
)

// Event describes one change to the stored state. Note is set for
// note.created, note.updated and note.pinned; DarkMode carries the new value
// for preferences.updated.
type Event struct {
	Kind     string       `json:"kind"`
	ID       string       `json:"id,omitempty"`
	Note     *models.Note `json:"-"`
	DarkMode bool         `json:"-"`
	Count    int          `json:"-"` // notes.reloaded: size of the new working set
}

// Service coordinates the repository and the settings.
type Service struct {
	mu     sync.Mutex
	repo   *notes.Repository
	prefs  *settings.Settings
	logger *slog.Logger

	subMu       sync.RWMutex
	subscribers []func(Event)
}

// NewService loads the persisted notes and preferences from store.
func NewService(store kv.Store, logger *slog.Logger, opts ...notes.Option) *Service {
	opts = append([]notes.Option{notes.WithLogger(logger)}, opts...)
	repo := notes.New(store, opts...)
	repo.Load()

	return &Service{
		repo:   repo,
		prefs:  settings.Load(store, logger),
		logger: logger,
	}
}

// Load re-reads notes and preferences from storage, replacing the working
// set. A stored value that cannot be decoded is skipped and the current state
// kept. It reports whether the notes were replaced.
func (s *Service) Load(_ context.Context) bool {
	s.mu.Lock()
	notesOK := s.repo.Reload()
	prefsOK := s.prefs.Reload()
	count, dark := s.repo.Len(), s.prefs.DarkMode()
	s.mu.Unlock()

	s.logger.Info("state reloaded",
		slog.Bool("notes", notesOK),
		slog.Bool("preferences", prefsOK),
		slog.Int("count", count))
	if notesOK {
		s.publish(Event{Kind: EventNotesReloaded, Count: count})
	}
	if prefsOK {
		s.publish(Event{Kind: EventPreferencesUpdated, DarkMode: dark})
	}
	return notesOK
}

// Subscribe registers fn to be called after every change. fn runs on the
// caller's goroutine after the service lock is released and must not block.
func (s *Service) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

func (s *Service) publish(ev Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		fn(ev)
	}
}

// List returns every note in display order.
func (s *Service) List(_ context.Context) []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Notes()
}

// Search returns the notes whose title or content contains query.
func (s *Service) Search(_ context.Context, query string) []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Search(query)
}

// Get returns a single note.
func (s *Service) Get(_ context.Context, id string) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.repo.Get(id)
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Create stores a new note. It fails with apperr.ErrInvalid when title or
// content is empty.
func (s *Service) Create(_ context.Context, title, content string, image []byte) (models.Note, error) {
	s.mu.Lock()
	n := s.repo.Draft(title, content, image)
	outcome := s.repo.AddOrUpdate(n)
	s.mu.Unlock()

	if outcome == notes.OutcomeRejected {
		return models.Note{}, invalid(n)
	}
	s.logger.Debug("note created", slog.String("id", n.ID))
	s.publish(Event{Kind: EventNoteCreated, ID: n.ID, Note: &n})
	return n, nil
}

// Import stores a note brought in from outside, such as a Markdown file.
// A non-zero created overrides both timestamps.
func (s *Service) Import(_ context.Context, title, content string, created time.Time, pinned bool) (models.Note, error) {
	s.mu.Lock()
	n := s.repo.Draft(title, content, nil)
	if !created.IsZero() {
		n.CreatedAt = created
		n.LastModified = created
	}
	n.IsPinned = pinned
	outcome := s.repo.AddOrUpdate(n)
	s.mu.Unlock()

	if outcome == notes.OutcomeRejected {
		return models.Note{}, invalid(n)
	}
	s.publish(Event{Kind: EventNoteCreated, ID: n.ID, Note: &n})
	return n, nil
}

// Update replaces the title and content of an existing note.
func (s *Service) Update(_ context.Context, id, title, content string) (models.Note, error) {
	return s.edit(id, func(n *models.Note) error {
		n.Title = title
		n.Content = content
		return nil
	})
}

// SetImage attaches data to a note, replacing any previous image.
func (s *Service) SetImage(_ context.Context, id string, data []byte) (models.Note, error) {
	return s.edit(id, func(n *models.Note) error {
		n.ImageData = data
		return nil
	})
}

// ClearImage removes the image attached to a note. It fails with
// apperr.ErrNoImage, without touching the note, when there is nothing to remove.
func (s *Service) ClearImage(_ context.Context, id string) (models.Note, error) {
	return s.edit(id, func(n *models.Note) error {
		if !n.HasImage() {
			return apperr.ErrNoImage
		}
		n.ImageData = nil
		return nil
	})
}

// edit applies fn to a copy of the stored note and stores the result. An
// error from fn aborts the edit.
func (s *Service) edit(id string, fn func(*models.Note) error) (models.Note, error) {
	s.mu.Lock()
	n, ok := s.repo.Get(id)
	if !ok {
		s.mu.Unlock()
		return models.Note{}, apperr.ErrNotFound
	}
	if err := fn(&n); err != nil {
		s.mu.Unlock()
		return models.Note{}, err
	}
	if s.repo.AddOrUpdate(n) == notes.OutcomeRejected {
		s.mu.Unlock()
		return models.Note{}, invalid(n)
	}
	updated, _ := s.repo.Get(id)
	s.mu.Unlock()

	s.publish(Event{Kind: EventNoteUpdated, ID: id, Note: &updated})
	return updated, nil
}

// TogglePin flips the pinned flag of a note.
func (s *Service) TogglePin(_ context.Context, id string) (models.Note, error) {
	s.mu.Lock()
	if !s.repo.Pin(models.Note{ID: id}) {
		s.mu.Unlock()
		return models.Note{}, apperr.ErrNotFound
	}
	n, _ := s.repo.Get(id)
	s.mu.Unlock()

	s.publish(Event{Kind: EventNotePinned, ID: id, Note: &n})
	return n, nil
}

// Delete removes a note.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	removed := s.repo.Delete(models.Note{ID: id})
	s.mu.Unlock()

	if !removed {
		return apperr.ErrNotFound
	}
	s.publish(Event{Kind: EventNoteDeleted, ID: id})
	return nil
}

// DarkMode reports the dark-mode preference.
func (s *Service) DarkMode(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.DarkMode()
}

// SetDarkMode updates the dark-mode preference. A failed write is logged;
// the new value stays in effect for this process.
func (s *Service) SetDarkMode(_ context.Context, on bool) {
	s.mu.Lock()
	err := s.prefs.SetDarkMode(on)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("preferences: persist failed", slog.String("error", err.Error()))
	}
	s.publish(Event{Kind: EventPreferencesUpdated, DarkMode: on})
}

// Reload re-reads key from storage after it was changed by another process.
// Unknown keys are ignored. A value that no longer decodes (a half-saved
// edit, a sync conflict) is skipped and the working set kept, so the next
// mutation does not overwrite the stored notes with an empty list.
func (s *Service) Reload(key string) {
	var ev Event
	s.mu.Lock()
	switch key {
	case kv.KeyNotes:
		if s.repo.Reload() {
			ev = Event{Kind: EventNotesReloaded, Count: s.repo.Len()}
		}
	case kv.KeyDarkMode:
		if s.prefs.Reload() {
			ev = Event{Kind: EventPreferencesUpdated, DarkMode: s.prefs.DarkMode()}
		}
	}
	s.mu.Unlock()

	if ev.Kind == "" {
		return
	}
	s.logger.Info("reloaded after external change", slog.String("key", key))
	s.publish(ev)
}

func invalid(n models.Note) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
	}
	return apperr.ErrInvalid
}
