package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quill/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
// Image is base64 encoded in JSON.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Groceries" validate:"required"`
	Content string `json:"content" example:"milk, eggs" validate:"required"`
	Image   []byte `json:"image,omitempty"`
}

// Validate checks that title and content are present.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Title   string `json:"title" example:"Groceries" validate:"required"`
	Content string `json:"content" example:"milk, eggs, bread" validate:"required"`
}

// Validate checks that title and content are present.
func (r *UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

// NoteResponse is a note as returned by the API. Image bytes are served
// separately from /notes/{id}/image.
type NoteResponse struct {
	ID           string    `json:"id" example:"6f1c..." validate:"required"`
	Title        string    `json:"title" example:"Groceries" validate:"required"`
	Content      string    `json:"content" example:"milk, eggs" validate:"required"`
	CreatedAt    time.Time `json:"createdAt" validate:"required"`
	LastModified time.Time `json:"lastModified" validate:"required"`
	IsPinned     bool      `json:"isPinned"`
	HasImage     bool      `json:"hasImage"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteResponse `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// PreferencesResponse carries the user preferences.
type PreferencesResponse struct {
	IsDarkMode bool `json:"isDarkMode"`
}

// PreferencesRequest updates the user preferences.
type PreferencesRequest struct {
	IsDarkMode *bool `json:"isDarkMode"`
}

// Validate checks that isDarkMode is present.
func (r *PreferencesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.IsDarkMode, validation.NotNil),
	)
}

func toResponse(n models.Note) NoteResponse {
	return NoteResponse{
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		CreatedAt:    n.CreatedAt,
		LastModified: n.LastModified,
		IsPinned:     n.IsPinned,
		HasImage:     n.HasImage(),
	}
}

func toListResponse(ns []models.Note) NoteListResponse {
	items := make([]NoteResponse, len(ns))
	for i, n := range ns {
		items[i] = toResponse(n)
	}
	return NoteListResponse{Notes: items, Total: len(items)}
}
