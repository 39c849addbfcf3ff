// Package display provides output formatting for sessions, plans and
// post-session reports.
//
// It supports multiple output formats (table, JSON, simple text) and
// a live terminal view that repaints in place while a recording is
// running.
package display

import (
	"io"

	"trainsync/pkg/planner"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays output in formatted tables.
	FormatTable Format = "table"

	// FormatJSON displays output as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays output in simple text format.
	FormatSimple Format = "simple"
)

// Formatter formats sessions, plans and reports for display.
type Formatter interface {
	// FormatSession formats a live session snapshot with its
	// current vitals.
	//
	// Parameters:
	//   - w: Output writer
	//   - sess: Session snapshot to format
	//   - vitals: Current folded vitals
	//
	// Returns error if formatting fails.
	FormatSession(w io.Writer, sess workout.Session, vitals samples.Vitals) error

	// FormatPlans formats one day's planned sessions.
	//
	// Parameters:
	//   - w: Output writer
	//   - dayKey: Day being listed, in YYYY-MM-DD form
	//   - plans: Plans for that day, already time-sorted
	//
	// Returns error if formatting fails.
	FormatPlans(w io.Writer, dayKey string, plans []planner.Plan) error

	// FormatReport formats a post-session report.
	//
	// Parameters:
	//   - w: Output writer
	//   - report: Report to format
	//
	// Returns error if formatting fails.
	FormatReport(w io.Writer, report summary.Report) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowVitals enables the vitals block in session output.
	// Default: true.
	ShowVitals bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
