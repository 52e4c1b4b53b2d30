// Package ingest runs the full pipeline for a document file: extract text,
// summarize it, persist the note, and index it for search.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/ai"
	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

// Ingestor turns a document file into a saved, searchable note.
type Ingestor struct {
	extractor *extract.Extractor
	generator ai.Generator
	store     storage.Storage
	index     keyword.Index
	logger    *zap.Logger
}

// NewIngestor wires the pipeline stages together.
func NewIngestor(extractor *extract.Extractor, generator ai.Generator, store storage.Storage, index keyword.Index, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		extractor: extractor,
		generator: generator,
		store:     store,
		index:     index,
		logger:    logger,
	}
}

// IngestFile extracts text from the file at path, summarizes it, persists the
// result as a note owned by userID, and indexes it. The note title is the
// file name without its extension.
func (in *Ingestor) IngestFile(ctx context.Context, userID, path string) (*models.Note, error) {
	text, err := in.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return in.IngestText(ctx, userID, title, text, path)
}

// IngestText summarizes already-extracted text, persists it as a note, and
// indexes it. pdfPath may be empty for text that did not come from a stored
// upload.
func (in *Ingestor) IngestText(ctx context.Context, userID, title, text, pdfPath string) (*models.Note, error) {
	summary, err := in.generator.Summarize(ctx, text)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneration, "failed to summarize document", err)
	}

	note, err := in.store.CreateNote(ctx, &models.NoteInput{
		UserID:  userID,
		Title:   title,
		RawText: text,
		Summary: summary,
		PDFPath: pdfPath,
	})
	if err != nil {
		return nil, err
	}

	// Indexing failure does not roll back the note. The note is the durable
	// record; the index can be rebuilt from it.
	if err := in.index.Index(ctx, note.ID, note.Title, note.Summary); err != nil {
		in.logger.Warn("failed to index note",
			zap.String("note_id", note.ID),
			zap.Error(err))
	}

	in.logger.Info("ingested note",
		zap.String("note_id", note.ID),
		zap.String("user_id", userID),
		zap.String("title", title),
		zap.Int("text_chars", len(text)))
	return note, nil
}
