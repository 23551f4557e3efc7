package notes

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/quill/internal/models"
)

// Search returns copies of the notes whose title or content contains query,
// compared with Unicode case folding. An empty query matches everything.
// The result keeps the working set's order and never aliases it.
func (r *Repository) Search(query string) []models.Note {
	out := make([]models.Note, 0, len(r.notes))
	if query == "" {
		for _, n := range r.notes {
			out = append(out, n.Clone())
		}
		return out
	}

	// A Caser keeps state between calls; one per search.
	fold := cases.Fold()
	needle := fold.String(query)
	for _, n := range r.notes {
		if strings.Contains(fold.String(n.Title), needle) || strings.Contains(fold.String(n.Content), needle) {
			out = append(out, n.Clone())
		}
	}
	return out
}
