package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const reportRule = 50

// WriteReport renders a human-readable summary of res to w: per-file
// statistics, the verdict and, on mismatch, the sampled differences.
func WriteReport(w io.Writer, res *Result) error {
	rule := strings.Repeat("=", reportRule)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nCOMPARISON RESULTS\n%s\n", rule, rule)

	t := table.NewWriter()
	t.SetOutputMirror(&b)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "File A", "File B"})
	t.AppendRow(table.Row{"Path", res.A.Path, res.B.Path})
	t.AppendRow(table.Row{"Size (bytes)", res.A.Size, res.B.Size})
	if res.A.Rows > 0 || res.B.Rows > 0 || res.A.Columns > 0 || res.B.Columns > 0 {
		t.AppendRow(table.Row{"Rows", res.A.Rows, res.B.Rows})
		t.AppendRow(table.Row{"Columns", res.A.Columns, res.B.Columns})
	}
	if res.A.DistinctRows > 0 || res.B.DistinctRows > 0 {
		t.AppendRow(table.Row{"Unique rows", res.A.DistinctRows, res.B.DistinctRows})
	}
	if res.A.Delimiter != "" || res.B.Delimiter != "" {
		t.AppendRow(table.Row{"Delimiter", res.A.Delimiter, res.B.Delimiter})
	}
	t.Render()

	fmt.Fprintf(&b, "Match: %v (decided by %s check)\n", res.Matched, res.Stage)
	if res.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", res.Err)
	}

	if d := res.Diff; d != nil && !d.Empty() {
		fmt.Fprintf(&b, "\n%s\nDIFFERENCES FOUND\n%s\n", rule, rule)
		if d.Partial {
			b.WriteString("(from the leading-row sample only)\n")
		}
		writeRowList(&b, "Rows ONLY in File A", d.TotalOnlyInA, d.RowsOnlyInA)
		writeRowList(&b, "Rows ONLY in File B", d.TotalOnlyInB, d.RowsOnlyInB)
		if d.TotalCountMismatches > 0 {
			fmt.Fprintf(&b, "\nRows with different counts: %d\n", d.TotalCountMismatches)
			ct := table.NewWriter()
			ct.SetOutputMirror(&b)
			ct.SetStyle(table.StyleLight)
			ct.AppendHeader(table.Row{"#", "Row", "Count A", "Count B"})
			for i, m := range d.CountMismatches {
				ct.AppendRow(table.Row{i + 1, m.Row.String(), m.CountA, m.CountB})
			}
			ct.Render()
		}
	}

	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRowList(b *strings.Builder, title string, total int, rows []CanonicalRow) {
	if total == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s: %d\n", title, total)
	for i, row := range rows {
		fmt.Fprintf(b, "  %d. %s\n", i+1, row)
	}
}
