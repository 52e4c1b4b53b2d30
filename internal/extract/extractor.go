// Package extract provides text extraction from uploaded document files.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kioku/internal/apperr"
)

// NoTextSentinel is returned for a PDF that parses but yields no text (scanned
// images, protected content). An empty PDF is not an error: failing would
// block an otherwise valid upload, and summarization copes with the sentinel.
const NoTextSentinel = "No text could be extracted from the PDF. The file might be scanned images or protected."

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Returns an extraction error if the file cannot be read or parsed.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, "failed to read file", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). PDF content that parses
// but contains no text yields NoTextSentinel rather than an error.
// For plain text files (.txt, .md), content is returned as-is (UTF-8 repaired).
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return "", apperr.Wrap(apperr.KindExtraction, "failed to extract text from PDF", err)
		}
		if strings.TrimSpace(text) == "" {
			return NoTextSentinel, nil
		}
		return text, nil
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return "", apperr.Wrap(apperr.KindExtraction, "failed to extract text from DOCX", err)
		}
		return text, nil
	case ".xlsx":
		text, err := extractExcel(content)
		if err != nil {
			return "", apperr.Wrap(apperr.KindExtraction, "failed to extract text from spreadsheet", err)
		}
		return text, nil
	default:
		return extractPlain(content)
	}
}

// SupportedExt reports whether ext (with leading dot) is a format the
// extractor understands natively. Anything else falls back to plain text.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".txt", ".md":
		return true
	}
	return false
}
