// Package core decides whether two tabular files contain the same data.
//
// This package holds all comparison logic independent of any UI or transport
// layer. It is used by the web handlers, the CLI and tests without
// modification.
//
// # Pipeline
//
// A comparison runs four stages in sequence:
//
//   - Table Loader: [LoadTable] reads CSV/TSV text (delimiter sniffed by
//     [SniffDelimiter]) or the first sheet of an XLSX workbook into a
//     rectangular [Table].
//   - Cell Normalizer: [NormalizeCell] canonicalizes numbers ("1.00" -> "1"),
//     lower-cases text and splits multi-value cells into tokens.
//   - Row Canonicalizer: [CanonicalizeRow] sorts a row's tokens so column
//     order does not matter. [ModeColumnAligned] keeps columns apart.
//   - Multiset Comparator: [Comparator.Compare] counts canonical rows per file
//     and compares the counts.
//
// # Shortcuts
//
// Before the full comparison the comparator rejects or accepts early:
//
//  1. Size: byte sizes differ by more than [Options.SizeThreshold]
//  2. Shape: row or column counts differ
//  3. Hash: identical raw content (xxh3-128 over every cell)
//  4. Sample: the first [Options.SampleRows] rows already differ
//
// # Error Handling
//
// Load failures wrap [ErrUnreadableFile] or [ErrUnparsableFormat] and are
// absorbed into a non-matching [Result] with Err set. Technical errors are
// mapped to user-facing messages with support codes by [MapError].
//
// # Concurrency
//
// A [Comparator] is stateless and safe for concurrent use. Callers that run
// many comparisons at once bound them with a [ComparisonLimiter].
package core
