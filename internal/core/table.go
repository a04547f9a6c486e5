package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// spreadsheetExts are parsed as workbooks. Legacy ".xls" is attempted too so
// that renamed OOXML files still load; true BIFF files fail as unparsable.
var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
	".xls":  true,
}

// IsSpreadsheet reports whether path is loaded as a workbook.
func IsSpreadsheet(path string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(path))]
}

// Table is a rectangular grid of raw cell strings.
type Table struct {
	// Header is the first row when LoadOptions.HasHeader is set, else nil.
	Header []string

	// Rows holds the data rows, each padded to Width.
	Rows [][]string

	// Width is the column count.
	Width int

	// Delimiter is the sniffed field delimiter, or 0 for workbooks.
	Delimiter rune
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// LoadOptions control how a file is turned into a Table.
type LoadOptions struct {
	// HasHeader treats the first row as column names.
	HasHeader bool

	// SampleSize is the number of leading bytes used to sniff the delimiter.
	SampleSize int
}

// DefaultLoadOptions returns options that treat the first row as a header.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{HasHeader: true, SampleSize: SniffSampleSize}
}

// LoadTable reads path into a Table. Failures wrap ErrUnreadableFile or
// ErrUnparsableFormat.
func LoadTable(path string, opts LoadOptions) (*Table, error) {
	if opts.SampleSize <= 0 {
		opts.SampleSize = SniffSampleSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	defer f.Close()

	if IsSpreadsheet(path) {
		return loadSpreadsheet(f, opts)
	}
	return loadDelimited(f, opts)
}

// loadDelimited parses delimited text with a sniffed delimiter.
func loadDelimited(r io.Reader, opts LoadOptions) (*Table, error) {
	text, err := readText(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}

	delim := SniffDelimiter(leadingSample(text, opts.SampleSize))

	records, err := parseDelimited(text, delim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparsableFormat, err)
	}

	t, err := buildTable(records, opts.HasHeader, true)
	if err != nil {
		return nil, err
	}
	t.Delimiter = delim
	return t, nil
}

// parseDelimited reads every record, tolerating stray quotes and ragged rows.
// Blank lines are dropped.
func parseDelimited(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankLine(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// isBlankLine reports whether a record came from a line holding only whitespace.
func isBlankLine(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}

// loadSpreadsheet reads the first sheet of a workbook.
func loadSpreadsheet(r io.Reader, opts LoadOptions) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrUnparsableFormat, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: empty file: workbook has no sheets", ErrUnparsableFormat)
	}

	rows, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrUnparsableFormat, sheets[0], err)
	}

	return buildTable(rows, opts.HasHeader, false)
}

// buildTable pads records into a rectangle. With a header and strictWidth,
// data rows wider than the header are rejected; otherwise the widest row
// sets the width.
func buildTable(records [][]string, hasHeader, strictWidth bool) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnparsableFormat)
	}

	t := &Table{}
	data := records
	if hasHeader {
		t.Header = records[0]
		data = records[1:]
	}

	width := len(t.Header)
	for i, row := range data {
		if len(row) <= width {
			continue
		}
		if hasHeader && strictWidth {
			return nil, fmt.Errorf("%w: row %d has more fields than the header (%d > %d)",
				ErrUnparsableFormat, i+2, len(row), width)
		}
		width = len(row)
	}

	t.Width = width
	if hasHeader {
		t.Header = padRow(t.Header, width)
	}
	t.Rows = make([][]string, len(data))
	for i, row := range data {
		t.Rows[i] = padRow(row, width)
	}
	return t, nil
}

// padRow extends row with empty cells up to width.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
