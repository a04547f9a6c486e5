// Package templates renders the HTML pages and partials served by the web
// package as templ components. Components live in pages.templ; run
// `templ generate` after editing it.
package templates

// Verdict is the view model for a finished comparison.
type Verdict struct {
	FileA   string
	FileB   string
	Matched bool
	Stage   string
	Message string

	// Error is set when a file could not be loaded.
	Error string

	OnlyInA         []string
	OnlyInB         []string
	CountMismatches []string
	TotalOnlyInA    int
	TotalOnlyInB    int
	TotalMismatches int
	Partial         bool
}
