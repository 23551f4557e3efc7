// Package apperr holds the sentinel errors shared across Quill layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a note or storage key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when a note fails validation (empty title or content).
	ErrInvalid = errors.New("invalid note")
	// ErrNoImage is returned when an image operation targets a note without one.
	ErrNoImage = errors.New("note has no image")
)
