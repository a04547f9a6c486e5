package core

import (
	"context"
	"fmt"
	"sort"
)

// ContextCheckInterval is how often (in rows) canonicalization checks for
// context cancellation.
var ContextCheckInterval = 1000

type multisetEntry struct {
	row   CanonicalRow
	count int
}

// RowMultiset counts occurrences of canonical rows.
type RowMultiset struct {
	entries map[string]*multisetEntry
	total   int
}

// NewRowMultiset returns an empty multiset sized for n rows.
func NewRowMultiset(n int) *RowMultiset {
	return &RowMultiset{entries: make(map[string]*multisetEntry, n)}
}

// BuildMultiset canonicalizes rows with mode and counts them.
func BuildMultiset(ctx context.Context, rows [][]string, mode RowMode) (*RowMultiset, error) {
	m := NewRowMultiset(len(rows))
	for i, row := range rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("canonicalize rows: %w", err)
			}
		}
		m.Add(mode.Canonicalize(row))
	}
	return m, nil
}

// Add records one occurrence of row.
func (m *RowMultiset) Add(row CanonicalRow) {
	key := row.Key()
	if e, ok := m.entries[key]; ok {
		e.count++
	} else {
		m.entries[key] = &multisetEntry{row: row, count: 1}
	}
	m.total++
}

// Count returns how many times row was added.
func (m *RowMultiset) Count(row CanonicalRow) int {
	if e, ok := m.entries[row.Key()]; ok {
		return e.count
	}
	return 0
}

// Len returns the total number of rows, duplicates included.
func (m *RowMultiset) Len() int {
	return m.total
}

// Distinct returns the number of distinct canonical rows.
func (m *RowMultiset) Distinct() int {
	return len(m.entries)
}

// Equal reports whether both multisets hold the same rows with the same counts.
func (m *RowMultiset) Equal(o *RowMultiset) bool {
	if m.total != o.total || len(m.entries) != len(o.entries) {
		return false
	}
	for key, e := range m.entries {
		oe, ok := o.entries[key]
		if !ok || oe.count != e.count {
			return false
		}
	}
	return true
}

// sortedKeys returns the entry keys in lexicographic order.
func (m *RowMultiset) sortedKeys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
