package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/export"
	"github.com/hyperjump/kioku/internal/models"
)

type exportRequest struct {
	NoteID string `json:"noteId"`
}

func (s *Server) loadNoteWithCards(r *http.Request, noteID string) (*models.Note, []*models.Flashcard, error) {
	note, err := s.store.GetNote(r.Context(), noteID)
	if err != nil {
		return nil, nil, err
	}
	cards, err := s.store.GetFlashcardsByNote(r.Context(), noteID)
	if err != nil {
		return nil, nil, err
	}
	return note, cards, nil
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if req.NoteID == "" {
		s.respondValidation(w, "noteId is required")
		return
	}
	note, cards, err := s.loadNoteWithCards(r, req.NoteID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	content := export.Markdown(note, cards)
	filename, err := export.Write(s.config.Storage.ExportDir, note.Title, "md", content)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Debug("exported markdown", zap.String("note_id", note.ID), zap.String("filename", filename))
	s.respondJSON(w, http.StatusOK, envelope{"markdown": content, "filename": filename})
}

func (s *Server) handleExportAnki(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if req.NoteID == "" {
		s.respondValidation(w, "noteId is required")
		return
	}
	note, cards, err := s.loadNoteWithCards(r, req.NoteID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	content, err := export.AnkiCSV(note, cards)
	if err != nil {
		s.respondError(w, err)
		return
	}
	filename, err := export.Write(s.config.Storage.ExportDir, note.Title, "csv", content)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Debug("exported anki csv", zap.String("note_id", note.ID), zap.String("filename", filename))
	s.respondJSON(w, http.StatusOK, envelope{"csv": content, "filename": filename})
}
