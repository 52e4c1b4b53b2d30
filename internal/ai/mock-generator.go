package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
)

// MockGenerator is a deterministic generator for tests. The same text always
// yields the same summary and cards, without network access.
type MockGenerator struct {
	// Err, when set, is returned by both operations.
	Err error
}

// NewMockGenerator returns a generator that produces deterministic output.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Summarize returns a fixed-form summary derived from the first words of text.
func (g *MockGenerator) Summarize(ctx context.Context, text string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	words := strings.Fields(text)
	if len(words) > 12 {
		words = words[:12]
	}
	return "- " + strings.Join(words, " "), nil
}

// GenerateFlashcards returns one card per sentence-ish fragment, capped at three.
func (g *MockGenerator) GenerateFlashcards(ctx context.Context, text string) ([]models.CardPair, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	fragments := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '\n' })
	cards := []models.CardPair{}
	for i, frag := range fragments {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}
		cards = append(cards, models.CardPair{
			Question: fmt.Sprintf("What does fragment %d say?", i+1),
			Answer:   frag,
		})
		if len(cards) == 3 {
			break
		}
	}
	return cards, nil
}
