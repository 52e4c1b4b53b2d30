// Package export renders a note and its flashcards to Markdown or
// Anki-importable CSV and persists export artifacts to disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/models"
)

// Markdown renders a note and its flashcards (in membership order) as a
// Markdown document. A note without flashcards gets an explicit line instead
// of an empty section.
func Markdown(note *models.Note, cards []*models.Flashcard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", note.Title)
	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", note.Summary)
	b.WriteString("## Flashcards\n\n")
	if len(cards) == 0 {
		b.WriteString("No flashcards available for this note.\n\n")
		return b.String()
	}
	for i, card := range cards {
		fmt.Fprintf(&b, "### Card %d\n\n", i+1)
		fmt.Fprintf(&b, "**Q:** %s\n\n", card.Question)
		fmt.Fprintf(&b, "**A:** %s\n\n", card.Answer)
	}
	return b.String()
}

// AnkiCSV renders a note's flashcards as Anki-importable CSV: one
// `"question","answer","tags"` line per card, tags being the note title.
// Double quotes inside fields are escaped by doubling, per standard CSV
// quoting. A note without flashcards is a not-found error: Anki import
// requires at least one card.
func AnkiCSV(note *models.Note, cards []*models.Flashcard) (string, error) {
	if len(cards) == 0 {
		return "", apperr.NotFound("no flashcards found for this note")
	}
	var b strings.Builder
	for _, card := range cards {
		fmt.Fprintf(&b, "%s,%s,%s\n", csvQuote(card.Question), csvQuote(card.Answer), csvQuote(note.Title))
	}
	return b.String(), nil
}

func csvQuote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// unsafeFilenameChars matches whitespace runs and path-hostile characters.
var unsafeFilenameChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// Filename derives an export artifact name from the note title:
// `{sanitized title}_{timestamp with colons replaced}.{ext}`. The timestamp
// keeps repeated exports distinct so artifacts are never overwritten.
func Filename(title, ext string, now time.Time) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "_")
	if sanitized == "" {
		sanitized = "note"
	}
	timestamp := strings.ReplaceAll(now.UTC().Format(time.RFC3339), ":", "-")
	return fmt.Sprintf("%s_%s.%s", sanitized, timestamp, ext)
}

// Write persists content under dir with a title-and-timestamp derived name,
// creating dir if needed, and returns the filename. Exports are audit
// artifacts: each call produces a new file.
func Write(dir, title, ext, content string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.Wrap(apperr.KindPersistence, "failed to create export directory", err)
	}
	filename := Filename(title, ext, time.Now())
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		return "", apperr.Wrap(apperr.KindPersistence, "failed to write export file", err)
	}
	return filename, nil
}
