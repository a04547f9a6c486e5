package core

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// numericPattern matches a full cell that is a plain signed decimal.
// Exponents, thousands separators and trailing dots are not numeric here.
var numericPattern = regexp.MustCompile(`^[+-]?\d*\.?\d+$`)

// fractionDigits is the precision used for non-integral numbers before
// trailing zeros are stripped.
const fractionDigits = 10

// isCellSpace reports whether r separates tokens inside a cell. Besides the
// Unicode space characters this includes the ASCII file, group, record and
// unit separators (U+001C..U+001F).
func isCellSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// NormalizeNumeric canonicalizes a numeric-looking string and lower-cases
// anything else. "1.0", "1" and "+1.00" all become "1"; "0.50" becomes "0.5".
func NormalizeNumeric(s string) string {
	s = strings.TrimFunc(s, isCellSpace)
	if !numericPattern.MatchString(s) {
		return strings.ToLower(s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !math.IsInf(f, 0) {
		return strings.ToLower(s)
	}
	return formatNumber(f)
}

// formatNumber renders integral values without a fraction and everything else
// with fixed precision, trailing zeros and a trailing dot removed.
func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == math.Trunc(f):
		if f == 0 {
			return "0"
		}
		return strconv.FormatFloat(f, 'f', 0, 64)
	}

	out := strconv.FormatFloat(f, 'f', fractionDigits, 64)
	out = strings.TrimRight(out, "0")
	return strings.TrimSuffix(out, ".")
}

// NormalizeCell converts one raw cell into its canonical tokens. Empty and
// whitespace-only cells produce no tokens.
func NormalizeCell(raw string) []string {
	if raw == "" {
		return nil
	}

	text := NormalizeNumeric(raw)
	if text == "" {
		return nil
	}

	var tokens []string
	for _, part := range strings.Split(text, ",") {
		tokens = append(tokens, strings.FieldsFunc(part, isCellSpace)...)
	}
	return tokens
}

// CanonicalRow is the order-independent form of a data row.
type CanonicalRow []string

// keySep joins row entries into a map key. Tokens never contain it because
// it is a token separator itself.
const keySep = "\x1f"

// Key returns a string that identifies the row within a RowMultiset.
func (r CanonicalRow) Key() string {
	return strings.Join(r, keySep)
}

// String renders the row for reports.
func (r CanonicalRow) String() string {
	quoted := make([]string, len(r))
	for i, tok := range r {
		quoted[i] = strconv.Quote(tok)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// RowMode selects how rows are canonicalized.
type RowMode int

const (
	// ModeTolerant pools every token of the row and sorts them, so values
	// that moved between columns still match.
	ModeTolerant RowMode = iota

	// ModeColumnAligned keeps one entry per column. Each entry is the cell's
	// tokens joined by a single space.
	ModeColumnAligned
)

// String returns the mode name used in configuration and JSON.
func (m RowMode) String() string {
	if m == ModeColumnAligned {
		return "column-aligned"
	}
	return "tolerant"
}

// ParseRowMode maps a mode name to a RowMode. Unknown names yield ModeTolerant.
func ParseRowMode(s string) RowMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "column-aligned", "column_aligned", "aligned", "strict":
		return ModeColumnAligned
	default:
		return ModeTolerant
	}
}

// CanonicalizeRow builds the tolerant canonical form of row.
func CanonicalizeRow(row []string) CanonicalRow {
	out := CanonicalRow{}
	for _, cell := range row {
		out = append(out, NormalizeCell(cell)...)
	}
	sort.Strings(out)
	return out
}

// CanonicalizeRowAligned builds the column-aligned canonical form of row.
func CanonicalizeRowAligned(row []string) CanonicalRow {
	out := make(CanonicalRow, len(row))
	for i, cell := range row {
		out[i] = strings.Join(NormalizeCell(cell), " ")
	}
	return out
}

// Canonicalize dispatches on mode.
func (m RowMode) Canonicalize(row []string) CanonicalRow {
	if m == ModeColumnAligned {
		return CanonicalizeRowAligned(row)
	}
	return CanonicalizeRow(row)
}
