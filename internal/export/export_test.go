package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/models"
)

func testNote() *models.Note {
	return &models.Note{
		ID:      "note-1",
		UserID:  "alice",
		Title:   "Cell Biology",
		Summary: "- mitochondria produce energy",
	}
}

func TestMarkdownWithCards(t *testing.T) {
	cards := []*models.Flashcard{
		{Question: "What produces energy?", Answer: "Mitochondria"},
		{Question: "What bounds the cell?", Answer: "The membrane"},
	}
	md := Markdown(testNote(), cards)

	for _, want := range []string{
		"# Cell Biology\n",
		"## Summary\n\n- mitochondria produce energy\n",
		"## Flashcards\n",
		"### Card 1\n\n**Q:** What produces energy?\n\n**A:** Mitochondria\n",
		"### Card 2\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "No flashcards available") {
		t.Error("placeholder line present despite cards")
	}
}

func TestMarkdownWithoutCards(t *testing.T) {
	md := Markdown(testNote(), nil)
	if !strings.Contains(md, "No flashcards available for this note.") {
		t.Errorf("missing placeholder line:\n%s", md)
	}
	if strings.Contains(md, "### Card") {
		t.Errorf("unexpected card header in empty export:\n%s", md)
	}
}

func TestAnkiCSV(t *testing.T) {
	cards := []*models.Flashcard{
		{Question: "What produces energy?", Answer: "Mitochondria"},
	}
	csv, err := AnkiCSV(testNote(), cards)
	if err != nil {
		t.Fatalf("AnkiCSV failed: %v", err)
	}
	want := "\"What produces energy?\",\"Mitochondria\",\"Cell Biology\"\n"
	if csv != want {
		t.Errorf("csv = %q, want %q", csv, want)
	}
}

func TestAnkiCSVEscapesQuotes(t *testing.T) {
	cards := []*models.Flashcard{
		{Question: "Quote?", Answer: `He said "hi"`},
	}
	csv, err := AnkiCSV(testNote(), cards)
	if err != nil {
		t.Fatalf("AnkiCSV failed: %v", err)
	}
	if !strings.Contains(csv, `"He said ""hi"""`) {
		t.Errorf("quotes not doubled: %q", csv)
	}
}

func TestAnkiCSVEmptyFails(t *testing.T) {
	_, err := AnkiCSV(testNote(), nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not-found error for empty export, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	got := Filename("Cell Biology: Intro", "md", now)
	want := "Cell_Biology_Intro_2024-03-01T15-04-05Z.md"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
	if strings.ContainsAny(got, ":/\\ ") {
		t.Errorf("filename carries unsafe characters: %q", got)
	}
}

func TestFilenameEmptyTitle(t *testing.T) {
	got := Filename("   ", "csv", time.Now())
	if !strings.HasPrefix(got, "note_") {
		t.Errorf("empty title should fall back to note_: %q", got)
	}
}

func TestWriteCreatesDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	first, err := Write(dir, "My Note", "md", "# one")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, first))
	if err != nil {
		t.Fatalf("export file unreadable: %v", err)
	}
	if string(data) != "# one" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	if _, err := Write(dir, "My Note", "md", "x"); err != nil {
		t.Fatalf("Write should create the directory: %v", err)
	}
}
