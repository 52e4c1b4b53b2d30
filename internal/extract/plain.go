package extract

import (
	"bytes"
	"unicode/utf8"
)

// extractPlain treats content as UTF-8 text. Invalid byte sequences are
// replaced with the Unicode replacement character instead of failing.
func extractPlain(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	return string(bytes.ToValidUTF8(content, []byte("�"))), nil
}
