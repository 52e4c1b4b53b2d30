package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// noteEntry is the shape indexed per note.
type noteEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so search survives restarts without re-indexing.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()
	noteMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// the exact words that appear in titles and summaries.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	noteMapping.AddFieldMappingsAt("title", textFieldMapping)
	noteMapping.AddFieldMappingsAt("summary", textFieldMapping)
	im.AddDocumentMapping("note", noteMapping)
	im.DefaultType = "note"
	im.DefaultMapping = noteMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a note's title and summary under its ID. Re-indexing the same
// ID replaces the previous entry.
func (b *BleveIndex) Index(ctx context.Context, noteID, title, summary string) error {
	return b.index.Index(noteID, &noteEntry{Title: title, Summary: summary})
}

// Search runs a match query over title and summary and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{NoteID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a note from the index.
func (b *BleveIndex) Delete(ctx context.Context, noteID string) error {
	return b.index.Delete(noteID)
}

// DocCount returns the number of indexed notes.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
