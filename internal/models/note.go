// Package models defines the domain types for Quill.
package models

import (
	"bytes"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Note is a single user note. It is stored as one element of the JSON array
// persisted under the "notes" key.
type Note struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	ImageData    []byte    `json:"imageData,omitempty"`
	IsPinned     bool      `json:"isPinned"`
}

// NewNote returns an unpinned note with both timestamps set to at.
func NewNote(id, title, content string, image []byte, at time.Time) Note {
	return Note{
		ID:           id,
		Title:        title,
		Content:      content,
		CreatedAt:    at,
		LastModified: at,
		ImageData:    image,
	}
}

// Validate reports whether the note may enter the collection.
// Title and content must both be non-empty.
func (n *Note) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.Content, validation.Required),
	)
}

// SameID reports whether n and other identify the same note.
func (n Note) SameID(other Note) bool {
	return n.ID == other.ID
}

// HasImage reports whether an image is attached.
func (n Note) HasImage() bool {
	return len(n.ImageData) > 0
}

// Clone returns a copy of n that shares no memory with it.
func (n Note) Clone() Note {
	n.ImageData = bytes.Clone(n.ImageData)
	return n
}
