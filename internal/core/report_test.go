package core

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport_Match(t *testing.T) {
	res := &Result{
		Matched: true,
		Stage:   StageHash,
		A:       FileStats{Path: "a.csv", Size: 12, Rows: 2, Columns: 2, Delimiter: "comma"},
		B:       FileStats{Path: "b.csv", Size: 12, Rows: 2, Columns: 2, Delimiter: "comma"},
	}

	var out bytes.Buffer
	require.NoError(t, WriteReport(&out, res))

	report := out.String()
	assert.Contains(t, report, "COMPARISON RESULTS")
	assert.Contains(t, report, "a.csv")
	assert.Contains(t, report, "Match: true (decided by hash check)")
	assert.Contains(t, report, "comma")
	assert.NotContains(t, report, "DIFFERENCES FOUND")
}

func TestWriteReport_Differences(t *testing.T) {
	res := &Result{
		Stage: StageSample,
		Diff: &DiffReport{
			RowsOnlyInA:          []CanonicalRow{{"1", "a"}},
			RowsOnlyInB:          []CanonicalRow{},
			CountMismatches:      []CountMismatch{{Row: CanonicalRow{"2", "b"}, CountA: 2, CountB: 1}},
			TotalOnlyInA:         4,
			TotalCountMismatches: 1,
			Partial:              true,
		},
	}

	var out bytes.Buffer
	require.NoError(t, WriteReport(&out, res))

	report := out.String()
	assert.Contains(t, report, "DIFFERENCES FOUND")
	assert.Contains(t, report, "leading-row sample")
	assert.Contains(t, report, "Rows ONLY in File A: 4")
	assert.Contains(t, report, `1. ("1", "a")`)
	assert.NotContains(t, report, "Rows ONLY in File B")
	assert.Contains(t, report, "Rows with different counts: 1")
	assert.Contains(t, report, `("2", "b")`)
}

func TestWriteReport_Error(t *testing.T) {
	res := &Result{
		Stage: StageError,
		Err:   errors.New("file B: unreadable file"),
		A:     FileStats{Path: "a.csv"},
		B:     FileStats{Path: "b.csv"},
	}

	var out bytes.Buffer
	require.NoError(t, WriteReport(&out, res))
	assert.Contains(t, out.String(), "Error: file B: unreadable file")
	assert.NotContains(t, out.String(), "Rows")
}
