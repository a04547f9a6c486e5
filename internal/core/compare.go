package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Stage names the step of the comparison that decided the outcome.
type Stage string

const (
	StageSize   Stage = "size"   // file sizes too far apart
	StageShape  Stage = "shape"  // row or column counts differ
	StageHash   Stage = "hash"   // identical raw content
	StageSample Stage = "sample" // leading rows differ
	StageFull   Stage = "full"   // full multiset comparison
	StageError  Stage = "error"  // loading failed or the context ended
)

// Default tuning values.
const (
	DefaultSizeThreshold int64 = 1000
	DefaultSampleRows          = 1000
)

// Options tune a comparison. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// SizeThreshold rejects files whose byte sizes differ by more than this
	// before they are parsed. Negative disables the check. Files that differ
	// only in delimiter or numeric formatting can exceed it, so large values
	// trade speed for fewer false rejections.
	SizeThreshold int64

	// SampleRows is the number of leading rows compared before the full
	// comparison. Zero disables the pre-check. Files whose rows are reordered
	// beyond this window are reported as different by the pre-check.
	SampleRows int

	// DiffSampleLimit caps each list in the diff report.
	DiffSampleLimit int

	// Mode selects tolerant or column-aligned row canonicalization.
	Mode RowMode

	// HasHeader treats the first row of each file as a header.
	HasHeader bool

	// Debug writes a human-readable report to DebugOutput.
	Debug       bool
	DebugOutput io.Writer

	// Logger receives stage decisions. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the standard comparison settings.
func DefaultOptions() Options {
	return Options{
		SizeThreshold:   DefaultSizeThreshold,
		SampleRows:      DefaultSampleRows,
		DiffSampleLimit: DefaultDiffSampleLimit,
		Mode:            ModeTolerant,
		HasHeader:       true,
		DebugOutput:     os.Stderr,
	}
}

// FileStats describes one input as seen by the comparator.
type FileStats struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Rows         int    `json:"rows"`
	Columns      int    `json:"columns"`
	DistinctRows int    `json:"distinct_rows"`
	Delimiter    string `json:"delimiter,omitempty"`
}

// Result is the outcome of one comparison.
type Result struct {
	Matched  bool          `json:"match"`
	Stage    Stage         `json:"stage"`
	Diff     *DiffReport   `json:"diff,omitempty"`
	Err      error         `json:"-"`
	A        FileStats     `json:"file_a"`
	B        FileStats     `json:"file_b"`
	Duration time.Duration `json:"-"`

	// DurationMS is Duration in whole milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// Comparator decides whether two tabular files hold the same rows.
// It holds no mutable state and is safe for concurrent use.
type Comparator struct {
	opts Options
}

// NewComparator creates a Comparator, filling unset options with defaults.
func NewComparator(opts Options) *Comparator {
	if opts.DiffSampleLimit <= 0 {
		opts.DiffSampleLimit = DefaultDiffSampleLimit
	}
	if opts.SampleRows < 0 {
		opts.SampleRows = 0
	}
	if opts.DebugOutput == nil {
		opts.DebugOutput = os.Stderr
	}
	return &Comparator{opts: opts}
}

// Options returns the comparator's effective options.
func (c *Comparator) Options() Options {
	return c.opts
}

// CompareFiles reports whether the files at pathA and pathB contain the same
// multiset of rows using default options. Any failure yields false.
func CompareFiles(pathA, pathB string, debug bool) bool {
	opts := DefaultOptions()
	opts.Debug = debug
	return NewComparator(opts).Compare(context.Background(), pathA, pathB).Matched
}

// CompareFilesDetailed is CompareFiles with explicit options, cancellation
// and a full Result.
func CompareFilesDetailed(ctx context.Context, pathA, pathB string, opts Options) Result {
	return NewComparator(opts).Compare(ctx, pathA, pathB)
}

// Compare runs the gate chain: size, shape, content hash, sampled rows, full
// multiset. Load failures and cancellation produce a non-match with Err set;
// nothing is returned as a fault.
func (c *Comparator) Compare(ctx context.Context, pathA, pathB string) Result {
	start := time.Now()
	res := c.compare(ctx, pathA, pathB)
	res.Duration = time.Since(start)
	res.DurationMS = res.Duration.Milliseconds()

	logger := c.logger().With("file_a", pathA, "file_b", pathB)
	if res.Err != nil {
		logger.Warn("comparison failed", "stage", res.Stage, "error", res.Err)
	} else {
		logger.Debug("comparison finished",
			"match", res.Matched,
			"stage", res.Stage,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	if c.opts.Debug {
		if err := WriteReport(c.opts.DebugOutput, &res); err != nil {
			logger.Warn("write debug report", "error", err)
		}
	}
	return res
}

func (c *Comparator) logger() *slog.Logger {
	if c.opts.Logger != nil {
		return c.opts.Logger
	}
	return slog.Default()
}

func (c *Comparator) compare(ctx context.Context, pathA, pathB string) Result {
	res := Result{A: FileStats{Path: pathA}, B: FileStats{Path: pathB}}
	fail := func(err error) Result {
		res.Matched = false
		res.Stage = StageError
		res.Err = err
		return res
	}

	// Size gate
	sizeA, err := fileSize(pathA)
	if err != nil {
		return fail(fmt.Errorf("file A: %w", err))
	}
	sizeB, err := fileSize(pathB)
	if err != nil {
		return fail(fmt.Errorf("file B: %w", err))
	}
	res.A.Size, res.B.Size = sizeA, sizeB

	if c.opts.SizeThreshold >= 0 && absDiff(sizeA, sizeB) > c.opts.SizeThreshold {
		res.Stage = StageSize
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Load
	loadOpts := LoadOptions{HasHeader: c.opts.HasHeader, SampleSize: SniffSampleSize}
	ta, err := LoadTable(pathA, loadOpts)
	if err != nil {
		return fail(fmt.Errorf("file A: %w", err))
	}
	tb, err := LoadTable(pathB, loadOpts)
	if err != nil {
		return fail(fmt.Errorf("file B: %w", err))
	}
	fillTableStats(&res.A, ta)
	fillTableStats(&res.B, tb)

	// Shape gate. The outcome is already decided; the multisets are only
	// built to explain it.
	if ta.NumRows() != tb.NumRows() || ta.Width != tb.Width {
		res.Stage = StageShape
		ma, mb, err := c.multisets(ctx, ta.Rows, tb.Rows)
		if err != nil {
			return fail(err)
		}
		res.A.DistinctRows = ma.Distinct()
		res.B.DistinctRows = mb.Distinct()
		res.Diff = BuildDiff(ma, mb, c.opts.DiffSampleLimit)
		return res
	}

	// Hash gate
	if ContentDigest(ta) == ContentDigest(tb) {
		res.Matched = true
		res.Stage = StageHash
		return res
	}

	// Sampled pre-check. Skipped when the sample would cover every row.
	if n := min(c.opts.SampleRows, ta.NumRows()); n > 0 && n < ta.NumRows() {
		ma, mb, err := c.multisets(ctx, ta.Rows[:n], tb.Rows[:n])
		if err != nil {
			return fail(err)
		}
		if !ma.Equal(mb) {
			res.Stage = StageSample
			res.Diff = BuildDiff(ma, mb, c.opts.DiffSampleLimit)
			res.Diff.Partial = true
			return res
		}
	}

	// Full comparison
	ma, mb, err := c.multisets(ctx, ta.Rows, tb.Rows)
	if err != nil {
		return fail(err)
	}
	res.A.DistinctRows = ma.Distinct()
	res.B.DistinctRows = mb.Distinct()
	res.Stage = StageFull
	res.Matched = ma.Equal(mb)
	if !res.Matched {
		res.Diff = BuildDiff(ma, mb, c.opts.DiffSampleLimit)
	}
	return res
}

// multisets canonicalizes both row sets with the configured mode.
func (c *Comparator) multisets(ctx context.Context, rowsA, rowsB [][]string) (*RowMultiset, *RowMultiset, error) {
	ma, err := BuildMultiset(ctx, rowsA, c.opts.Mode)
	if err != nil {
		return nil, nil, err
	}
	mb, err := BuildMultiset(ctx, rowsB, c.opts.Mode)
	if err != nil {
		return nil, nil, err
	}
	return ma, mb, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrUnreadableFile, path)
	}
	return info.Size(), nil
}

func fillTableStats(s *FileStats, t *Table) {
	s.Rows = t.NumRows()
	s.Columns = t.Width
	if t.Delimiter != 0 {
		s.Delimiter = DelimiterName(t.Delimiter)
	}
}

// DelimiterName returns a readable name for a delimiter.
func DelimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '|':
		return "pipe"
	default:
		return string(d)
	}
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// IsLoadError reports whether err came from reading or parsing an input.
func IsLoadError(err error) bool {
	return errors.Is(err, ErrUnreadableFile) || errors.Is(err, ErrUnparsableFormat)
}
