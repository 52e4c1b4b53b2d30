// Package ai provides summary and flashcard generation via the OpenAI
// chat-completions API.
package ai

import (
	"context"

	"github.com/hyperjump/kioku/internal/models"
)

// Generator produces a summary and flashcards from extracted text.
type Generator interface {
	// Summarize returns a prose summary of text. Input longer than the
	// prompt budget is truncated before submission.
	Summarize(ctx context.Context, text string) (string, error)
	// GenerateFlashcards returns question/answer pairs derived from text.
	// The generation service's structured output is parsed at this boundary;
	// a malformed response is an error, never an empty list.
	GenerateFlashcards(ctx context.Context, text string) ([]models.CardPair, error)
}
