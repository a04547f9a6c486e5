package core

// DefaultDiffSampleLimit caps each list in a DiffReport.
const DefaultDiffSampleLimit = 5

// CountMismatch is a row present in both inputs with different multiplicities.
type CountMismatch struct {
	Row    CanonicalRow `json:"row"`
	CountA int          `json:"count_a"`
	CountB int          `json:"count_b"`
}

// DiffReport summarises why two row multisets differ. The row lists are
// capped samples in key order; the Total fields carry the uncapped counts.
type DiffReport struct {
	RowsOnlyInA     []CanonicalRow  `json:"rows_only_in_a"`
	RowsOnlyInB     []CanonicalRow  `json:"rows_only_in_b"`
	CountMismatches []CountMismatch `json:"count_mismatches"`

	TotalOnlyInA         int `json:"total_only_in_a"`
	TotalOnlyInB         int `json:"total_only_in_b"`
	TotalCountMismatches int `json:"total_count_mismatches"`

	// Partial is set when the report was built from the sampled pre-check
	// rather than the full tables.
	Partial bool `json:"partial"`
}

// Empty reports whether the two multisets were found identical.
func (d *DiffReport) Empty() bool {
	return d.TotalOnlyInA == 0 && d.TotalOnlyInB == 0 && d.TotalCountMismatches == 0
}

// BuildDiff compares a against b. limit caps each sample list; a non-positive
// limit uses DefaultDiffSampleLimit.
func BuildDiff(a, b *RowMultiset, limit int) *DiffReport {
	if limit <= 0 {
		limit = DefaultDiffSampleLimit
	}

	d := &DiffReport{
		RowsOnlyInA:     []CanonicalRow{},
		RowsOnlyInB:     []CanonicalRow{},
		CountMismatches: []CountMismatch{},
	}

	for _, key := range a.sortedKeys() {
		ea := a.entries[key]
		eb, ok := b.entries[key]
		switch {
		case !ok:
			d.TotalOnlyInA++
			if len(d.RowsOnlyInA) < limit {
				d.RowsOnlyInA = append(d.RowsOnlyInA, ea.row)
			}
		case ea.count != eb.count:
			d.TotalCountMismatches++
			if len(d.CountMismatches) < limit {
				d.CountMismatches = append(d.CountMismatches, CountMismatch{
					Row:    ea.row,
					CountA: ea.count,
					CountB: eb.count,
				})
			}
		}
	}

	for _, key := range b.sortedKeys() {
		if _, ok := a.entries[key]; ok {
			continue
		}
		d.TotalOnlyInB++
		if len(d.RowsOnlyInB) < limit {
			d.RowsOnlyInB = append(d.RowsOnlyInB, b.entries[key].row)
		}
	}

	return d
}
