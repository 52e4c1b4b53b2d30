// Package keyword provides a Bleve full-text index over notes.
package keyword

import "context"

// Result is a search hit: the note ID and its relevance score.
type Result struct {
	NoteID string  `json:"noteId"`
	Score  float64 `json:"score"`
}

// Index defines full-text indexing over notes.
type Index interface {
	Index(ctx context.Context, noteID, title, summary string) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, noteID string) error
	DocCount() (uint64, error)
	Close() error
}
