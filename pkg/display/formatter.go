package display

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"trainsync/pkg/workout"
)

// defaultWidth is assumed when the writer is not a terminal.
const defaultWidth = 80

// New creates a new formatter based on configuration.
//
// Parameters:
//   - cfg: Formatter configuration
//
// Returns a configured Formatter.
func New(cfg Config) Formatter {
	// Set defaults.
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// terminalWidth returns the writer's terminal width, or defaultWidth
// when the writer is not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}

	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}

// formatFloat formats a float with specified precision.
func formatFloat(f float64, precision int) string {
	format := fmt.Sprintf("%%.%df", precision)
	return fmt.Sprintf(format, f)
}

// formatDuration renders a duration as h:mm:ss or m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// formatSet renders one set as "8 x 80kg @RPE8 ✓" style text, using
// whichever fields the set carries.
func formatSet(set workout.Set) string {
	out := ""

	switch {
	case set.Reps != nil && set.WeightKg != nil:
		out = fmt.Sprintf("%d x %skg", *set.Reps, formatFloat(*set.WeightKg, 1))
	case set.Reps != nil:
		out = fmt.Sprintf("%d reps", *set.Reps)
	case set.DurationSec != nil && set.DistanceM != nil:
		out = fmt.Sprintf("%sm in %s", formatFloat(*set.DistanceM, 0),
			formatDuration(time.Duration(*set.DurationSec)*time.Second))
	case set.DurationSec != nil:
		out = formatDuration(time.Duration(*set.DurationSec) * time.Second)
	case set.DistanceM != nil:
		out = fmt.Sprintf("%sm", formatFloat(*set.DistanceM, 0))
	default:
		out = "-"
	}

	if set.RPE != nil {
		out += fmt.Sprintf(" @RPE%s", formatFloat(*set.RPE, 1))
	}
	if set.Done {
		out += " ✓"
	}
	return out
}

// exerciseLabel prefers the snapshot name captured at logging time.
func exerciseLabel(ref workout.ExerciseRef) string {
	if ref.SnapshotName != "" {
		return ref.SnapshotName
	}
	if ref.CatalogID != "" {
		return ref.CatalogID
	}
	return "(unnamed exercise)"
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	separator := ""
	for i := 0; i < len(title); i++ {
		separator += "="
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, separator)
	return err
}
