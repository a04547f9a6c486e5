package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/JonMunkholm/tablematch/internal/logging"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// CompareOptions holds the flags of the compare command.
type CompareOptions struct {
	Debug         bool
	JSON          bool
	ColumnAligned bool
	NoHeader      bool
	SampleRows    int
	SizeThreshold int64
	DiffLimit     int
}

// Options converts the flags into comparator options.
func (o *CompareOptions) Options() core.Options {
	opts := core.DefaultOptions()
	opts.Debug = o.Debug
	opts.HasHeader = !o.NoHeader
	opts.SampleRows = o.SampleRows
	opts.SizeThreshold = o.SizeThreshold
	opts.DiffSampleLimit = o.DiffLimit
	if o.ColumnAligned {
		opts.Mode = core.ModeColumnAligned
	}
	return opts
}

// jsonResult is the --json output.
type jsonResult struct {
	core.Result
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand() *cobra.Command {
	opts := &CompareOptions{}
	cmd := &cobra.Command{
		Use:   "compare FILE_A FILE_B",
		Short: "Compare two tabular files",
		Long: `Compare two CSV, TSV or XLSX files as multisets of rows.

Exit status is 0 when the files match, 1 when they differ or cannot be
read, and 2 on usage errors.`,
		Example: `  # Compare a CSV export with a spreadsheet
  tablematch compare export.csv report.xlsx

  # Keep column positions and print the full report
  tablematch compare a.tsv b.tsv --column-aligned --debug

  # Machine-readable result
  tablematch compare a.csv b.csv --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Debug, "debug", "d", false, "Print the comparison report")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.ColumnAligned, "column-aligned", false, "Keep values in their columns when comparing rows")
	cmd.Flags().BoolVar(&opts.NoHeader, "no-header", false, "Treat the first row as data")
	cmd.Flags().IntVar(&opts.SampleRows, "sample-rows", core.DefaultSampleRows, "Leading rows checked before the full comparison (0 disables)")
	cmd.Flags().Int64Var(&opts.SizeThreshold, "size-threshold", core.DefaultSizeThreshold, "Maximum byte size difference before parsing (negative disables)")
	cmd.Flags().IntVar(&opts.DiffLimit, "diff-limit", core.DefaultDiffSampleLimit, "Rows listed per difference category")

	return cmd
}

func runCompare(cmd *cobra.Command, pathA, pathB string, opts *CompareOptions) error {
	stdout := cmd.OutOrStdout()

	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	copts := opts.Options()
	copts.Logger = logging.New(cmd.ErrOrStderr(), level, format)
	copts.DebugOutput = stdout
	if opts.JSON {
		copts.DebugOutput = cmd.ErrOrStderr()
	}

	res := core.NewComparator(copts).Compare(cmd.Context(), pathA, pathB)

	var err error
	if opts.JSON {
		err = writeJSONResult(stdout, res)
	} else {
		err = writeVerdict(stdout, res)
	}
	if err != nil {
		return err
	}

	if !res.Matched {
		return ErrMismatch
	}
	return nil
}

func writeJSONResult(w io.Writer, res core.Result) error {
	out := jsonResult{Result: res, Status: "success", Message: "FILES MATCH PERFECTLY"}
	switch {
	case res.Err != nil:
		out.Status = "error"
		out.Message = core.MapError(res.Err).Message
		out.Error = res.Err.Error()
	case !res.Matched:
		out.Status = "fail"
		out.Message = "FILES DO NOT MATCH"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeVerdict prints a one-line verdict styled for the terminal behind w.
func writeVerdict(w io.Writer, res core.Result) error {
	r := lipgloss.NewRenderer(w)
	ok := r.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	bad := r.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	muted := r.NewStyle().Foreground(lipgloss.Color("241"))

	var line string
	switch {
	case res.Err != nil:
		line = bad.Render("ERROR: "+res.Err.Error()) + "\n"
	case res.Matched:
		line = ok.Render("FILES MATCH PERFECTLY")
	default:
		line = bad.Render("FILES DO NOT MATCH")
	}
	if res.Err == nil {
		line += " " + muted.Render(fmt.Sprintf("(%s check)", res.Stage)) + "\n"
	}

	_, err := io.WriteString(w, line)
	return err
}
