// Package storage defines the persistence interface for notes and flashcards.
package storage

import (
	"context"

	"github.com/hyperjump/kioku/internal/models"
)

// Storage defines note and flashcard persistence operations.
//
// Operations that touch both entities (ReplaceFlashcards, DeleteNote,
// DeleteFlashcard) are atomic: a concurrent reader never observes new
// flashcards without the updated membership list, or vice versa.
type Storage interface {
	// Note operations
	CreateNote(ctx context.Context, input *models.NoteInput) (*models.Note, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotesByUser(ctx context.Context, userID string) ([]*models.NoteSummary, error)
	UpdateNote(ctx context.Context, id string, upd *models.NoteUpdate) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) error

	// Flashcard operations
	GetFlashcard(ctx context.Context, id string) (*models.Flashcard, error)
	GetFlashcardsByNote(ctx context.Context, noteID string) ([]*models.Flashcard, error)
	ListFlashcardsByUser(ctx context.Context, userID string) ([]*models.Flashcard, error)
	UpdateFlashcard(ctx context.Context, id string, upd *models.FlashcardUpdate) (*models.Flashcard, error)
	DeleteFlashcard(ctx context.Context, id string) error

	// ReplaceFlashcards persists one flashcard per pair and replaces the
	// note's membership list with exactly the new IDs, as one atomic unit.
	ReplaceFlashcards(ctx context.Context, userID, noteID string, pairs []models.CardPair) ([]*models.Flashcard, error)

	// Stats
	CountNotes(ctx context.Context) (int64, error)
	CountFlashcards(ctx context.Context) (int64, error)

	Close() error
}
