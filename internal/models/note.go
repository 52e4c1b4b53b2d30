// Package models defines core data structures for notes and flashcards.
package models

import "time"

// Note is a saved unit of study material: extracted text, AI summary, and the
// ordered list of flashcard IDs it owns. The flashcard list is a membership
// cache; flashcard rows are the source of truth for existence.
type Note struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	Title        string    `json:"title" db:"title"`
	RawText      string    `json:"rawText" db:"raw_text"`
	Summary      string    `json:"summary" db:"summary"`
	PDFPath      string    `json:"pdfUrl,omitempty" db:"pdf_path"`
	FlashcardIDs []string  `json:"flashcards" db:"flashcard_ids"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// NoteSummary is the listing shape for a note: identity and summary fields
// only, with the summary truncated to a preview by the caller.
type NoteSummary struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteInput is the input for persisting a new note.
type NoteInput struct {
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	RawText string `json:"rawText"`
	Summary string `json:"summary"`
	PDFPath string `json:"pdfUrl,omitempty"`
}

// NoteUpdate is a partial update of a note; nil fields are left unchanged.
type NoteUpdate struct {
	Title   *string `json:"title,omitempty"`
	Summary *string `json:"summary,omitempty"`
}

// Flashcard is a question/answer pair belonging to exactly one note.
type Flashcard struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	NoteID    string    `json:"noteId" db:"note_id"`
	Question  string    `json:"question" db:"question"`
	Answer    string    `json:"answer" db:"answer"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FlashcardUpdate is a partial update of a flashcard; nil fields are left unchanged.
type FlashcardUpdate struct {
	Question *string `json:"question,omitempty"`
	Answer   *string `json:"answer,omitempty"`
}

// CardPair is a question/answer pair as produced by generation or supplied by
// a caller, before it is persisted as a Flashcard.
type CardPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// NoteGroup is a user's flashcards grouped under the owning note.
type NoteGroup struct {
	NoteID     string       `json:"noteId"`
	NoteTitle  string       `json:"noteTitle"`
	Flashcards []*Flashcard `json:"flashcards"`
}
