package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

const defaultSearchLimit = 20

// handleUploadPDF accepts a multipart PDF upload and stores it under the
// upload directory. The stored path is the input to extract or ingest.
func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Ingest.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.Ingest.MaxUploadBytes); err != nil {
		s.respondValidation(w, "file missing or larger than %d bytes", s.config.Ingest.MaxUploadBytes)
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.respondValidation(w, "no PDF file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "application/pdf" && !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondValidation(w, "only PDF files are accepted")
		return
	}

	if err := os.MkdirAll(s.config.Storage.UploadDir, 0755); err != nil {
		s.respondError(w, apperr.Wrap(apperr.KindPersistence, "failed to create upload directory", err))
		return
	}
	// Prefix with a UUID so two uploads of the same file never collide.
	fileName := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))
	filePath := filepath.Join(s.config.Storage.UploadDir, fileName)
	dst, err := os.Create(filePath)
	if err != nil {
		s.respondError(w, apperr.Wrap(apperr.KindPersistence, "failed to store upload", err))
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		s.respondError(w, apperr.Wrap(apperr.KindPersistence, "failed to store upload", err))
		return
	}

	s.logger.Debug("stored upload", zap.String("path", filePath), zap.Int64("size", header.Size))
	s.respondJSON(w, http.StatusOK, envelope{
		"message":  "File uploaded successfully",
		"fileName": fileName,
		"filePath": filePath,
	})
}

type ingestRequest struct {
	UserID   string `json:"userId"`
	FilePath string `json:"filePath"`
}

// handleIngest runs the full pipeline on a previously uploaded file:
// extract, summarize, save, index.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		s.respondValidation(w, "userId is required")
		return
	}
	if req.FilePath == "" {
		s.respondValidation(w, "filePath is required")
		return
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		s.respondError(w, apperr.NotFound("file not found: %s", req.FilePath))
		return
	}
	note, err := s.ingestor.IngestFile(r.Context(), req.UserID, req.FilePath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, envelope{"note": note})
}

type extractRequest struct {
	FilePath string `json:"filePath"`
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if req.FilePath == "" {
		s.respondValidation(w, "filePath is required")
		return
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		s.respondError(w, apperr.NotFound("file not found: %s", req.FilePath))
		return
	}
	text, err := s.extractor.Extract(req.FilePath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"text": text})
}

type summaryRequest struct {
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondValidation(w, "text is required")
		return
	}
	summary, err := s.generator.Summarize(r.Context(), req.Text)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"summary": summary})
}

func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	for field, value := range map[string]string{
		"userId":  input.UserID,
		"title":   input.Title,
		"rawText": input.RawText,
		"summary": input.Summary,
	} {
		if strings.TrimSpace(value) == "" {
			s.respondValidation(w, "%s is required", field)
			return
		}
	}
	note, err := s.store.CreateNote(r.Context(), &input)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.index.Index(r.Context(), note.ID, note.Title, note.Summary); err != nil {
		s.logger.Warn("failed to index note", zap.String("note_id", note.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, envelope{"note": note})
}

func (s *Server) handleListNotesByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	notes, err := s.store.ListNotesByUser(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	for _, note := range notes {
		note.Summary = utils.Truncate(note.Summary, s.config.Ingest.SummaryPreview)
	}
	s.respondJSON(w, http.StatusOK, envelope{"notes": notes})
}

type noteSearchHit struct {
	Note  *models.NoteSummary `json:"note"`
	Score float64             `json:"score"`
}

func (s *Server) handleSearchNotes(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.respondValidation(w, "q is required")
		return
	}
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := s.index.Search(r.Context(), query, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	hits := make([]*noteSearchHit, 0, len(results))
	for _, res := range results {
		note, err := s.store.GetNote(r.Context(), res.NoteID)
		if err != nil {
			// Stale index entry; the note is gone.
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			s.respondError(w, err)
			return
		}
		hits = append(hits, &noteSearchHit{
			Note: &models.NoteSummary{
				ID:        note.ID,
				UserID:    note.UserID,
				Title:     note.Title,
				Summary:   utils.Truncate(note.Summary, s.config.Ingest.SummaryPreview),
				CreatedAt: note.CreatedAt,
				UpdatedAt: note.UpdatedAt,
			},
			Score: res.Score,
		})
	}
	s.respondJSON(w, http.StatusOK, envelope{"results": hits})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	note, err := s.store.GetNote(r.Context(), noteID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	cards, err := s.store.GetFlashcardsByNote(r.Context(), noteID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{"note": note, "flashcards": cards})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	var upd models.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.respondValidation(w, "invalid request body")
		return
	}
	if upd.Title == nil && upd.Summary == nil {
		s.respondValidation(w, "no fields to update")
		return
	}
	note, err := s.store.UpdateNote(r.Context(), noteID, &upd)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.index.Index(r.Context(), note.ID, note.Title, note.Summary); err != nil {
		s.logger.Warn("failed to re-index note", zap.String("note_id", note.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, envelope{"note": note})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if err := s.store.DeleteNote(r.Context(), noteID); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.index.Delete(r.Context(), noteID); err != nil {
		s.logger.Warn("failed to remove note from index", zap.String("note_id", noteID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, envelope{"message": "Note deleted successfully"})
}
