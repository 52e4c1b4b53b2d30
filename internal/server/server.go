// Package server provides the HTTP API for Kioku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/ai"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/storage"
)

// Server is the HTTP server for the Kioku API.
type Server struct {
	store     storage.Storage
	generator ai.Generator
	extractor *extract.Extractor
	ingestor  *ingest.Ingestor
	index     keyword.Index
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	generator ai.Generator,
	extractor *extract.Extractor,
	ingestor *ingest.Ingestor,
	index keyword.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:     store,
		generator: generator,
		extractor: extractor,
		ingestor:  ingestor,
		index:     index,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/notes", func(r chi.Router) {
		r.Post("/upload", s.handleUploadPDF)
		r.Post("/ingest", s.handleIngest)
		r.Post("/extract", s.handleExtractText)
		r.Post("/generate-summary", s.handleGenerateSummary)
		r.Post("/save", s.handleSaveNote)
		r.Get("/user/{userID}", s.handleListNotesByUser)
		r.Get("/search", s.handleSearchNotes)
		r.Get("/{noteID}", s.handleGetNote)
		r.Patch("/{noteID}", s.handleUpdateNote)
		r.Delete("/{noteID}", s.handleDeleteNote)
	})

	r.Route("/api/flashcards", func(r chi.Router) {
		r.Post("/generate", s.handleGenerateFlashcards)
		r.Post("/save", s.handleSaveFlashcards)
		r.Get("/user/{userID}", s.handleListFlashcardsByUser)
		r.Get("/", s.handleListFlashcardsByNote)
		r.Put("/{flashcardID}", s.handleUpdateFlashcard)
		r.Patch("/{flashcardID}", s.handleUpdateFlashcard)
		r.Delete("/{flashcardID}", s.handleDeleteFlashcard)
	})

	r.Route("/api/export", func(r chi.Router) {
		r.Post("/markdown", s.handleExportMarkdown)
		r.Post("/anki", s.handleExportAnki)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteCount, err := s.store.CountNotes(ctx)
	if err != nil {
		s.logger.Error("status: count notes failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	cardCount, err := s.store.CountFlashcards(ctx)
	if err != nil {
		s.logger.Error("status: count flashcards failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	resp := envelope{
		"notes":      noteCount,
		"flashcards": cardCount,
	}
	if s.index != nil {
		if indexed, err := s.index.DocCount(); err == nil {
			resp["indexed_notes"] = indexed
		}
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.UploadDir,
		s.config.Storage.ExportDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = envelope{
		"database_path":    s.config.Storage.DatabasePath,
		"bleve_index_path": s.config.Storage.BleveIndexPath,
		"upload_dir":       s.config.Storage.UploadDir,
		"export_dir":       s.config.Storage.ExportDir,
		"model":            s.config.OpenAI.Model,
	}
	s.respondJSON(w, http.StatusOK, resp)
}
