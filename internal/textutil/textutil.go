// Package textutil holds the small text tools served next to the file
// comparison: quoting a pasted list and comparing token lists.
package textutil

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrTooFewValues is returned when fewer than two values were filled in.
var ErrTooFewValues = errors.New("at least two values are required")

// QuoteList splits text on commas and newlines, trims each value, drops
// empty ones and returns the rest double-quoted and joined by ", ".
func QuoteList(text string) string {
	text = strings.ReplaceAll(text, ",", "\n")

	var quoted []string
	for _, line := range strings.Split(text, "\n") {
		v := strings.TrimSpace(line)
		if v == "" {
			continue
		}
		quoted = append(quoted, `"`+v+`"`)
	}
	return strings.Join(quoted, ", ")
}

// Tokens lower-cases text and splits it on commas and whitespace.
func Tokens(text string) []string {
	return strings.Fields(strings.ToLower(strings.ReplaceAll(text, ",", " ")))
}

// TokenMismatch describes how one value differs from the reference.
type TokenMismatch struct {
	Slot    int      `json:"slot"`
	Label   string   `json:"label"`
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

// TokenComparison is the outcome of CompareTokenSets.
type TokenComparison struct {
	Match      bool            `json:"match"`
	Compared   int             `json:"compared"`
	Mismatches []TokenMismatch `json:"mismatches"`
}

// CompareTokenSets compares every filled value against the first filled
// one. Values are compared as token multisets; a value holding the same
// tokens in a different order is not reported. Slots are 1-based positions
// in values, blanks included.
func CompareTokenSets(values []string) (*TokenComparison, error) {
	var reference []string
	filled := 0
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if filled == 0 {
			reference = Tokens(v)
		}
		filled++
	}
	if filled < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrTooFewValues, filled)
	}

	out := &TokenComparison{Compared: filled, Mismatches: []TokenMismatch{}}
	refCounts := countTokens(reference)

	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		current := Tokens(v)
		if slices.Equal(reference, current) {
			continue
		}

		curCounts := countTokens(current)
		missing := surplus(refCounts, curCounts)
		extra := surplus(curCounts, refCounts)
		if len(missing) == 0 && len(extra) == 0 {
			continue
		}
		out.Mismatches = append(out.Mismatches, TokenMismatch{
			Slot:    i + 1,
			Label:   fmt.Sprintf("Value %d", i+1),
			Missing: missing,
			Extra:   extra,
		})
	}

	out.Match = len(out.Mismatches) == 0
	return out, nil
}

func countTokens(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// surplus returns, sorted, the tokens a holds more often than b, repeated
// by the difference.
func surplus(a, b map[string]int) []string {
	out := []string{}
	for tok, n := range a {
		for i := b[tok]; i < n; i++ {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}
