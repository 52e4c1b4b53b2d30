package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// wtTag matches <w:t>text</w:t> including attributed forms like
// <w:t xml:space="preserve">. Extracting every text node keeps content intact
// regardless of paragraph/run attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX extracts text from .docx bytes. DOCX is a ZIP containing the
// OOXML body at word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, readErr := buf.ReadFrom(rc)
		_ = rc.Close()
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, readErr)
		}
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}

	parts := wtTag.FindAllStringSubmatch(string(docXML), -1)
	if len(parts) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(p[1]))
	}
	return strings.TrimSpace(b.String()), nil
}
