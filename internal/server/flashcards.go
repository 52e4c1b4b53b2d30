package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hyperjump/kioku/internal/models"
)

type generateFlashcardsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleGenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	var req generateFlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondValidation(w, "text is required")
		return
	}
	cards, err := s.generator.GenerateFlashcards(r.Context(), req.Text)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"cards": cards})
}

type saveFlashcardsRequest struct {
	UserID string            `json:"userId"`
	NoteID string            `json:"noteId"`
	Cards  []models.CardPair `json:"cards"`
}

// handleSaveFlashcards replaces the note's flashcards with the submitted
// batch. All cards plus the note's membership list commit together; a
// missing note persists nothing.
func (s *Server) handleSaveFlashcards(w http.ResponseWriter, r *http.Request) {
	var req saveFlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		s.respondValidation(w, "userId is required")
		return
	}
	if req.NoteID == "" {
		s.respondValidation(w, "noteId is required")
		return
	}
	if len(req.Cards) == 0 {
		s.respondValidation(w, "cards must not be empty")
		return
	}
	for i, card := range req.Cards {
		if strings.TrimSpace(card.Question) == "" || strings.TrimSpace(card.Answer) == "" {
			s.respondValidation(w, "card %d has an empty question or answer", i)
			return
		}
	}
	cards, err := s.store.ReplaceFlashcards(r.Context(), req.UserID, req.NoteID, req.Cards)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, envelope{"flashcards": cards})
}

func (s *Server) handleListFlashcardsByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	cards, err := s.store.ListFlashcardsByUser(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	// Group under the owning note, preserving first-seen note order.
	groups := []*models.NoteGroup{}
	byNote := map[string]*models.NoteGroup{}
	for _, card := range cards {
		group, ok := byNote[card.NoteID]
		if !ok {
			title := ""
			if note, err := s.store.GetNote(r.Context(), card.NoteID); err == nil {
				title = note.Title
			}
			group = &models.NoteGroup{NoteID: card.NoteID, NoteTitle: title}
			byNote[card.NoteID] = group
			groups = append(groups, group)
		}
		group.Flashcards = append(group.Flashcards, card)
	}
	s.respondJSON(w, http.StatusOK, envelope{"groups": groups})
}

func (s *Server) handleListFlashcardsByNote(w http.ResponseWriter, r *http.Request) {
	noteID := r.URL.Query().Get("noteId")
	if noteID == "" {
		s.respondValidation(w, "noteId is required")
		return
	}
	if _, err := s.store.GetNote(r.Context(), noteID); err != nil {
		s.respondError(w, err)
		return
	}
	cards, err := s.store.GetFlashcardsByNote(r.Context(), noteID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"flashcards": cards})
}

func (s *Server) handleUpdateFlashcard(w http.ResponseWriter, r *http.Request) {
	flashcardID := chi.URLParam(r, "flashcardID")
	var upd models.FlashcardUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if upd.Question == nil && upd.Answer == nil {
		s.respondValidation(w, "no fields to update")
		return
	}
	card, err := s.store.UpdateFlashcard(r.Context(), flashcardID, &upd)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"flashcard": card})
}

func (s *Server) handleDeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	flashcardID := chi.URLParam(r, "flashcardID")
	if err := s.store.DeleteFlashcard(r.Context(), flashcardID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"message": "Flashcard deleted successfully"})
}
