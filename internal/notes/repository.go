// Package notes holds the note repository: the in-memory working set, its
// ordering and search, and write-through persistence of every mutation.
//
// A Repository is not safe for concurrent use. Callers that share one across
// goroutines must serialise access themselves (see noteservice).
package notes

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/kv"
	"github.com/starford/quill/internal/models"
)

// Outcome reports what AddOrUpdate did.
type Outcome int

const (
	// OutcomeRejected means the note failed validation; nothing changed.
	OutcomeRejected Outcome = iota
	// OutcomeAdded means the note was appended to the working set.
	OutcomeAdded
	// OutcomeUpdated means an existing note with the same id was replaced.
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeUpdated:
		return "updated"
	default:
		return "rejected"
	}
}

// Repository owns the working set of notes.
type Repository struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	notes []models.Note
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for new notes and edits.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithIDGenerator overrides the generator used for new note ids.
func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) {
		r.newID = newID
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New creates an empty repository backed by store. Call Load to populate it.
func New(store kv.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the working set with the persisted collection. A missing or
// unreadable collection yields an empty working set.
func (r *Repository) Load() {
	loaded, _ := kv.Load[[]models.Note](r.store, kv.KeyNotes, r.logger)
	r.notes = dedupe(loaded)
	sortNotes(r.notes)
	r.logger.Debug("notes: loaded", slog.Int("count", len(r.notes)))
}

// Reload re-reads the persisted collection after it changed underneath the
// repository. Unlike Load, a collection that cannot be read or decoded leaves
// the working set untouched, so the next write does not overwrite the stored
// notes with an empty list. A missing collection means every note was
// deleted. Reload reports whether the working set was replaced.
func (r *Repository) Reload() bool {
	loaded, err := kv.Lookup[[]models.Note](r.store, kv.KeyNotes)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		r.logger.Warn("notes: reload skipped, keeping working set",
			slog.Int("count", len(r.notes)),
			slog.String("error", err.Error()))
		return false
	}
	r.notes = dedupe(loaded)
	sortNotes(r.notes)
	r.logger.Debug("notes: reloaded", slog.Int("count", len(r.notes)))
	return true
}

// Draft creates a new, not yet stored note: fresh id, both timestamps now,
// unpinned.
func (r *Repository) Draft(title, content string, image []byte) models.Note {
	return models.NewNote(r.newID(), title, content, image, r.now())
}

// AddOrUpdate stores note. A note with an empty title or content is ignored.
// If a note with the same id exists it is replaced in place, keeping the
// stored CreatedAt and refreshing LastModified; otherwise note is appended
// as given.
func (r *Repository) AddOrUpdate(note models.Note) Outcome {
	if err := note.Validate(); err != nil {
		r.logger.Debug("notes: rejected", slog.String("id", note.ID), slog.String("error", err.Error()))
		return OutcomeRejected
	}
	note = note.Clone()

	outcome := OutcomeAdded
	if i := r.indexOf(note.ID); i >= 0 {
		note.CreatedAt = r.notes[i].CreatedAt
		note.LastModified = r.now()
		r.notes[i] = note
		outcome = OutcomeUpdated
	} else {
		r.notes = append(r.notes, note)
	}

	sortNotes(r.notes)
	r.persist()
	return outcome
}

// Pin toggles the pinned flag of the stored note with note's id.
// It reports false, and changes nothing, if no such note exists.
func (r *Repository) Pin(note models.Note) bool {
	i := r.indexOf(note.ID)
	if i < 0 {
		return false
	}
	r.notes[i].IsPinned = !r.notes[i].IsPinned

	sortNotes(r.notes)
	r.persist()
	return true
}

// Delete removes every stored note with note's id. It reports whether
// anything was removed; a miss does not touch storage.
func (r *Repository) Delete(note models.Note) bool {
	kept := r.notes[:0]
	for _, n := range r.notes {
		if !n.SameID(note) {
			kept = append(kept, n)
		}
	}
	removed := len(kept) != len(r.notes)
	clear(r.notes[len(kept):])
	r.notes = kept
	if removed {
		r.persist()
	}
	return removed
}

// Get returns a copy of the stored note with the given id.
func (r *Repository) Get(id string) (models.Note, bool) {
	if i := r.indexOf(id); i >= 0 {
		return r.notes[i].Clone(), true
	}
	return models.Note{}, false
}

// Notes returns a copy of the whole working set in display order.
func (r *Repository) Notes() []models.Note {
	return r.Search("")
}

// Len returns the size of the working set.
func (r *Repository) Len() int {
	return len(r.notes)
}

func (r *Repository) indexOf(id string) int {
	for i := range r.notes {
		if r.notes[i].ID == id {
			return i
		}
	}
	return -1
}

// persist writes the working set wholesale. Failures are logged and the
// in-memory state is kept.
func (r *Repository) persist() {
	out := r.notes
	if out == nil {
		out = []models.Note{}
	}
	if err := kv.Save(r.store, kv.KeyNotes, out); err != nil {
		r.logger.Error("notes: persist failed",
			slog.Int("count", len(out)),
			slog.String("error", err.Error()))
	}
}

// dedupe keeps the first note for every id so a hand-edited collection
// cannot break id uniqueness.
func dedupe(in []models.Note) []models.Note {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Note, 0, len(in))
	for _, n := range in {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
