package core

import (
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader wraps r so that reads yield clean UTF-8:
//
//   - a UTF-8 byte order mark is dropped
//   - UTF-16 input with a byte order mark is transcoded
//   - invalid UTF-8 sequences become U+FFFD
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// readText reads all of r through NewTextReader.
func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(NewTextReader(r))
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(data), nil
}

// leadingSample returns at most n bytes from the start of s, cut back to a
// rune boundary.
func leadingSample(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
