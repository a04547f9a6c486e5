package core

// sniff.go infers the field delimiter of a text table from a leading sample.
//
// Two heuristics run in order:
//
//  1. Quote analysis: look for quoted values bordered by a delimiter and
//     count which delimiter borders them most often.
//  2. Frequency analysis: for each candidate, find the most common per-line
//     count (the mode) and accept candidates whose mode is consistent across
//     at least 90% of the lines, examined in chunks of ten lines.
//
// When both are inconclusive the delimiter defaults to tab.

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultDelimiter is used when the sample gives no usable signal.
const DefaultDelimiter = '\t'

// SniffSampleSize is the number of leading bytes examined.
const SniffSampleSize = 4096

// CandidateDelimiters are the only delimiters the sniffer will return.
var CandidateDelimiters = []rune{',', '\t', ';', '|'}

// preferredDelimiters breaks ties between equally consistent candidates.
var preferredDelimiters = []rune{',', '\t', ';', ' ', ':'}

// sniffChunkLines is the number of lines added per frequency pass.
const sniffChunkLines = 10

// SniffDelimiter returns the delimiter that best explains sample.
func SniffDelimiter(sample string) rune {
	sample = strings.ReplaceAll(sample, "\r\n", "\n")
	sample = strings.ReplaceAll(sample, "\r", "\n")

	if d, ok := guessQuotedDelimiter(sample); ok {
		return d
	}
	if d, ok := guessFrequencyDelimiter(sample); ok {
		return d
	}
	return DefaultDelimiter
}

func isCandidate(r rune) bool {
	for _, c := range CandidateDelimiters {
		if c == r {
			return true
		}
	}
	return false
}

// =============================================================================
// Quote analysis
// =============================================================================

type quoteTrail int

const (
	trailSameDelim quoteTrail = iota // ,"x",
	trailAnyDelim                    // "x",
	trailLineEnd                     // ,"x" or "x" at end of line
)

// quotePattern describes one shape of quoted value. Patterns are tried in
// order and the first one that matches anywhere decides the outcome.
type quotePattern struct {
	leadingDelim bool
	trail        quoteTrail
}

var quotePatterns = []quotePattern{
	{leadingDelim: true, trail: trailSameDelim},
	{leadingDelim: false, trail: trailAnyDelim},
	{leadingDelim: true, trail: trailLineEnd},
	{leadingDelim: false, trail: trailLineEnd},
}

func isQuote(r rune) bool {
	return r == '"' || r == '\''
}

// isDelimClass reports whether r may act as a delimiter next to a quote:
// anything other than a word character, newline or quote.
func isDelimClass(r rune) bool {
	if r == '\n' || isQuote(r) || r == '_' {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func guessQuotedDelimiter(sample string) (rune, bool) {
	rs := []rune(sample)

	for _, p := range quotePatterns {
		matched, delims := p.scan(rs)
		if !matched {
			continue
		}
		return mostFrequent(delims)
	}
	return 0, false
}

// scan walks rs left to right collecting non-overlapping matches of p. It
// returns whether anything matched and the candidate delimiters seen, in
// match order.
func (p quotePattern) scan(rs []rune) (bool, []rune) {
	matched := false
	var delims []rune

	for i := 0; i < len(rs); {
		end, delim, ok := p.matchAt(rs, i)
		if !ok {
			i++
			continue
		}
		matched = true
		if delim != 0 && isCandidate(delim) {
			delims = append(delims, delim)
		}
		i = end
	}
	return matched, delims
}

// matchAt tries to match p starting at rs[i]. It returns the end offset of
// the match and the delimiter it captured (0 when the pattern has none).
func (p quotePattern) matchAt(rs []rune, i int) (int, rune, bool) {
	n := len(rs)
	var lead rune
	var open int

	if p.leadingDelim {
		if !isDelimClass(rs[i]) {
			return 0, 0, false
		}
		lead = rs[i]
		open = i + 1
		if open < n && rs[open] == ' ' {
			open++
		}
	} else {
		switch {
		case (i == 0 || rs[i-1] == '\n') && isQuote(rs[i]):
			open = i
		case rs[i] == '\n' && i+1 < n && isQuote(rs[i+1]):
			open = i + 1
		default:
			return 0, 0, false
		}
	}

	if open >= n || !isQuote(rs[open]) {
		return 0, 0, false
	}
	q := rs[open]

	// Shortest quoted body whose closing quote is followed by the trail.
	for m := open + 1; m < n; m++ {
		if rs[m] != q {
			continue
		}
		next := m + 1
		switch p.trail {
		case trailSameDelim:
			if next < n && rs[next] == lead {
				return next + 1, lead, true
			}
		case trailAnyDelim:
			if next < n && isDelimClass(rs[next]) {
				end := next + 1
				if end < n && rs[end] == ' ' {
					end++
				}
				return end, rs[next], true
			}
		case trailLineEnd:
			if next == n || rs[next] == '\n' {
				return next, lead, true
			}
		}
	}
	return 0, 0, false
}

// mostFrequent returns the most common rune, preferring the one seen first
// on ties.
func mostFrequent(rs []rune) (rune, bool) {
	if len(rs) == 0 {
		return 0, false
	}

	counts := make(map[rune]int)
	var order []rune
	for _, r := range rs {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}

	best := order[0]
	for _, r := range order[1:] {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best, true
}

// =============================================================================
// Frequency analysis
// =============================================================================

// freqCount records how many lines contained a character freq times.
type freqCount struct {
	freq  int
	lines int
}

// freqTable keeps freqCounts in first-seen order so mode ties resolve the
// same way on every run.
type freqTable struct {
	items []freqCount
}

func (t *freqTable) add(freq int) {
	for i := range t.items {
		if t.items[i].freq == freq {
			t.items[i].lines++
			return
		}
	}
	t.items = append(t.items, freqCount{freq: freq, lines: 1})
}

// mode returns the most common frequency with its line count reduced by the
// lines that disagreed. ok is false when the character never appeared.
func (t *freqTable) mode() (freqCount, bool) {
	if len(t.items) == 1 {
		if t.items[0].freq == 0 {
			return freqCount{}, false
		}
		return t.items[0], true
	}

	best := 0
	for i := 1; i < len(t.items); i++ {
		if t.items[i].lines > t.items[best].lines {
			best = i
		}
	}

	m := t.items[best]
	for i, it := range t.items {
		if i != best {
			m.lines -= it.lines
		}
	}
	return m, true
}

func guessFrequencyDelimiter(sample string) (rune, bool) {
	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return 0, false
	}

	chunk := min(sniffChunkLines, len(lines))
	tables := make(map[rune]*freqTable, len(CandidateDelimiters))
	for _, c := range CandidateDelimiters {
		tables[c] = &freqTable{}
	}

	modes := make(map[rune]freqCount)
	delims := make(map[rune]freqCount)

	iteration := 0
	for start := 0; start < len(lines); start += chunk {
		iteration++
		end := min(start+chunk, len(lines))

		for _, line := range lines[start:end] {
			for _, c := range CandidateDelimiters {
				tables[c].add(strings.Count(line, string(c)))
			}
		}

		for _, c := range CandidateDelimiters {
			if m, ok := tables[c].mode(); ok {
				modes[c] = m
			}
		}

		total := float64(min(chunk*iteration, len(lines)))
		for consistency := 1.0; len(delims) == 0 && consistency >= 0.9; consistency -= 0.01 {
			for c, m := range modes {
				if m.freq > 0 && m.lines > 0 && float64(m.lines)/total >= consistency {
					delims[c] = m
				}
			}
		}

		if len(delims) == 1 {
			for c := range delims {
				return c, true
			}
		}
		if len(delims) > 1 {
			break
		}
	}

	if len(delims) == 0 {
		return 0, false
	}

	for _, p := range preferredDelimiters {
		if _, ok := delims[p]; ok {
			return p, true
		}
	}

	// Highest (freq, lines, char) wins.
	keys := make([]rune, 0, len(delims))
	for c := range delims {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := delims[keys[i]], delims[keys[j]]
		if a.freq != b.freq {
			return a.freq < b.freq
		}
		if a.lines != b.lines {
			return a.lines < b.lines
		}
		return keys[i] < keys[j]
	})
	return keys[len(keys)-1], true
}
