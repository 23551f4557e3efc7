package notes

import (
	"slices"

	"github.com/starford/quill/internal/models"
)

// compareNotes orders pinned notes first, then newer CreatedAt first.
func compareNotes(a, b models.Note) int {
	if a.IsPinned != b.IsPinned {
		if a.IsPinned {
			return -1
		}
		return 1
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// sortNotes sorts in place. Ties keep their current relative order.
func sortNotes(ns []models.Note) {
	slices.SortStableFunc(ns, compareNotes)
}

// Ordered reports whether ns satisfies the display order.
func Ordered(ns []models.Note) bool {
	return slices.IsSortedFunc(ns, compareNotes)
}
