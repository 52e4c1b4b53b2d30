// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		summary TEXT NOT NULL,
		pdf_path TEXT,
		flashcard_ids TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_notes_user_updated ON notes(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS flashcards (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		note_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_flashcards_note_id ON flashcards(note_id, position);
	CREATE INDEX IF NOT EXISTS idx_flashcards_user_id ON flashcards(user_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateNote assigns an ID and timestamps, persists, and returns the stored note.
func (s *SQLiteStorage) CreateNote(ctx context.Context, input *models.NoteInput) (*models.Note, error) {
	now := time.Now()
	note := &models.Note{
		ID:           uuid.New().String(),
		UserID:       input.UserID,
		Title:        input.Title,
		RawText:      input.RawText,
		Summary:      input.Summary,
		PDFPath:      input.PDFPath,
		FlashcardIDs: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, raw_text, summary, pdf_path, flashcard_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.UserID, note.Title, note.RawText, note.Summary, note.PDFPath, "[]", note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to save note", err)
	}
	return note, nil
}

// GetNote returns a note by ID, or a not-found error.
func (s *SQLiteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	var idsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, raw_text, summary, pdf_path, flashcard_ids, created_at, updated_at
		 FROM notes WHERE id = ?`, id,
	).Scan(&note.ID, &note.UserID, &note.Title, &note.RawText, &note.Summary, &note.PDFPath, &idsJSON, &note.CreatedAt, &note.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("note not found: %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to read note", err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &note.FlashcardIDs); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to decode flashcard list", err)
	}
	if note.FlashcardIDs == nil {
		note.FlashcardIDs = []string{}
	}
	return &note, nil
}

// ListNotesByUser returns summary fields of a user's notes, most recently updated first.
func (s *SQLiteStorage) ListNotesByUser(ctx context.Context, userID string) ([]*models.NoteSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, summary, created_at, updated_at
		 FROM notes WHERE user_id = ? ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to list notes", err)
	}
	defer rows.Close()

	notes := []*models.NoteSummary{}
	for rows.Next() {
		var n models.NoteSummary
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Summary, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "failed to scan note", err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to list notes", err)
	}
	return notes, nil
}

// UpdateNote applies a partial update and returns the updated note.
// Nil fields in upd are left unchanged.
func (s *SQLiteStorage) UpdateNote(ctx context.Context, id string, upd *models.NoteUpdate) (*models.Note, error) {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		note.Title = *upd.Title
	}
	if upd.Summary != nil {
		note.Summary = *upd.Summary
	}
	note.UpdatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, summary = ?, updated_at = ? WHERE id = ?`,
		note.Title, note.Summary, note.UpdatedAt, id,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to update note", err)
	}
	return note, nil
}

// DeleteNote removes a note and all of its flashcards in one transaction.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to delete note", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("note not found: %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flashcards WHERE note_id = ?`, id); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to delete flashcards", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to commit delete", err)
	}
	return nil
}

// GetFlashcard returns a flashcard by ID, or a not-found error.
func (s *SQLiteStorage) GetFlashcard(ctx context.Context, id string) (*models.Flashcard, error) {
	var card models.Flashcard
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, note_id, question, answer, created_at, updated_at
		 FROM flashcards WHERE id = ?`, id,
	).Scan(&card.ID, &card.UserID, &card.NoteID, &card.Question, &card.Answer, &card.CreatedAt, &card.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("flashcard not found: %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to read flashcard", err)
	}
	return &card, nil
}

// GetFlashcardsByNote returns a note's flashcards in membership order.
func (s *SQLiteStorage) GetFlashcardsByNote(ctx context.Context, noteID string) ([]*models.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, note_id, question, answer, created_at, updated_at
		 FROM flashcards WHERE note_id = ? ORDER BY position`,
		noteID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to list flashcards", err)
	}
	defer rows.Close()
	return scanFlashcards(rows)
}

// ListFlashcardsByUser returns all of a user's flashcards, grouped by note in
// the row order (note, then membership position).
func (s *SQLiteStorage) ListFlashcardsByUser(ctx context.Context, userID string) ([]*models.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, note_id, question, answer, created_at, updated_at
		 FROM flashcards WHERE user_id = ? ORDER BY note_id, position`,
		userID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to list flashcards", err)
	}
	defer rows.Close()
	return scanFlashcards(rows)
}

func scanFlashcards(rows *sql.Rows) ([]*models.Flashcard, error) {
	cards := []*models.Flashcard{}
	for rows.Next() {
		var card models.Flashcard
		if err := rows.Scan(&card.ID, &card.UserID, &card.NoteID, &card.Question, &card.Answer, &card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "failed to scan flashcard", err)
		}
		cards = append(cards, &card)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to list flashcards", err)
	}
	return cards, nil
}

// UpdateFlashcard applies a partial update and returns the updated flashcard.
func (s *SQLiteStorage) UpdateFlashcard(ctx context.Context, id string, upd *models.FlashcardUpdate) (*models.Flashcard, error) {
	card, err := s.GetFlashcard(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Question != nil {
		card.Question = *upd.Question
	}
	if upd.Answer != nil {
		card.Answer = *upd.Answer
	}
	card.UpdatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`UPDATE flashcards SET question = ?, answer = ?, updated_at = ? WHERE id = ?`,
		card.Question, card.Answer, card.UpdatedAt, id,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to update flashcard", err)
	}
	return card, nil
}

// DeleteFlashcard removes a flashcard and pulls its ID from the owning note's
// membership list, in one transaction. The note itself is never deleted here,
// even when its last flashcard goes away.
func (s *SQLiteStorage) DeleteFlashcard(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var noteID string
	err = tx.QueryRowContext(ctx, `SELECT note_id FROM flashcards WHERE id = ?`, id).Scan(&noteID)
	if err == sql.ErrNoRows {
		return apperr.NotFound("flashcard not found: %s", id)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to read flashcard", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ?`, id); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to delete flashcard", err)
	}

	var idsJSON string
	if err := tx.QueryRowContext(ctx, `SELECT flashcard_ids FROM notes WHERE id = ?`, noteID).Scan(&idsJSON); err != nil {
		// Flashcard row without an owning note; removing the row is enough.
		if err == sql.ErrNoRows {
			return tx.Commit()
		}
		return apperr.Wrap(apperr.KindPersistence, "failed to read note", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to decode flashcard list", err)
	}
	kept := make([]string, 0, len(ids))
	for _, fid := range ids {
		if fid != id {
			kept = append(kept, fid)
		}
	}
	newJSON, err := json.Marshal(kept)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to encode flashcard list", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE notes SET flashcard_ids = ?, updated_at = ? WHERE id = ?`,
		string(newJSON), time.Now(), noteID,
	); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to update note", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to commit delete", err)
	}
	return nil
}

// ReplaceFlashcards persists one flashcard per pair and replaces the note's
// membership list with exactly the new IDs. The note's previous flashcards
// are removed so the membership list and the flashcard rows never disagree.
// Either everything commits or nothing does.
func (s *SQLiteStorage) ReplaceFlashcards(ctx context.Context, userID, noteID string, pairs []models.CardPair) ([]*models.Flashcard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE id = ?`, noteID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("note not found: %s", noteID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to read note", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM flashcards WHERE note_id = ?`, noteID); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to clear flashcards", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO flashcards (id, user_id, note_id, question, answer, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now()
	cards := make([]*models.Flashcard, 0, len(pairs))
	ids := make([]string, 0, len(pairs))
	for i, pair := range pairs {
		card := &models.Flashcard{
			ID:        uuid.New().String(),
			UserID:    userID,
			NoteID:    noteID,
			Question:  pair.Question,
			Answer:    pair.Answer,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := stmt.ExecContext(ctx, card.ID, card.UserID, card.NoteID, card.Question, card.Answer, i, card.CreatedAt, card.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "failed to save flashcard", err)
		}
		cards = append(cards, card)
		ids = append(ids, card.ID)
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to encode flashcard list", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE notes SET flashcard_ids = ?, updated_at = ? WHERE id = ?`,
		string(idsJSON), now, noteID,
	); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to update note", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to commit flashcards", err)
	}
	return cards, nil
}

// CountNotes returns the total number of notes.
func (s *SQLiteStorage) CountNotes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// CountFlashcards returns the total number of flashcards.
func (s *SQLiteStorage) CountFlashcards(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flashcards`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
