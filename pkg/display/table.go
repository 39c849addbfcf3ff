package display

import (
	"fmt"
	"io"
	"strings"

	"trainsync/pkg/planner"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatSession implements Formatter.FormatSession.
func (f *tableFormatter) FormatSession(w io.Writer, sess workout.Session, vitals samples.Vitals) error {
	title := sess.Title
	if title == "" {
		title = sess.Kind
	}
	header := fmt.Sprintf("%s [%s]  %s", truncate(title, terminalWidth(w)-20), sess.State, formatDuration(sess.Duration()))
	if err := writeHeader(w, header, f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, 0, 16)
	for _, item := range sess.Items {
		for i, set := range item.Sets {
			label := ""
			if i == 0 {
				label = exerciseLabel(item.Exercise)
			}
			rows = append(rows, []string{label, fmt.Sprintf("#%d", set.Order+1), formatSet(set), syncMark(set.Sync)})
		}
		if len(item.Sets) == 0 {
			rows = append(rows, []string{exerciseLabel(item.Exercise), "", "-", syncMark(item.Sync)})
		}
	}

	if err := writeTable(w, []string{"Exercise", "Set", "Logged", "Sync"}, rows, f.config.Compact); err != nil {
		return err
	}

	if f.config.ShowVitals {
		return f.writeVitals(w, vitals)
	}
	return nil
}

// FormatPlans implements Formatter.FormatPlans.
func (f *tableFormatter) FormatPlans(w io.Writer, dayKey string, plans []planner.Plan) error {
	if err := writeHeader(w, "Planned Sessions "+dayKey, f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(plans))
	for i, plan := range plans {
		at := plan.Time
		if at == "" {
			at = "--:--"
		}
		duration := ""
		if plan.DurationMinutes > 0 {
			duration = fmt.Sprintf("%dm", plan.DurationMinutes)
		}
		rows[i] = []string{at, plan.Kind, plan.Name, duration, plan.Note}
	}

	return writeTable(w, []string{"Time", "Kind", "Name", "Duration", "Note"}, rows, f.config.Compact)
}

// FormatReport implements Formatter.FormatReport.
func (f *tableFormatter) FormatReport(w io.Writer, report summary.Report) error {
	title := report.Title
	if title == "" {
		title = report.Kind
	}
	if err := writeHeader(w, "Session Report: "+title, f.config.Compact); err != nil {
		return err
	}

	calories := formatFloat(report.CaloriesKcal, 0) + " kcal"
	if !report.CaloriesMeasured {
		calories += " (estimated)"
	}

	rows := [][]string{
		{"Elapsed", formatDuration(report.Elapsed)},
		{"Sets", fmt.Sprintf("%d done / %d logged", report.DoneSetCount, report.SetCount)},
		{"Volume", formatFloat(report.TotalVolumeKg, 1) + " kg"},
		{"Calories", calories},
	}
	if report.DistanceKnown {
		rows = append(rows, []string{"Distance", formatFloat(report.DistanceM, 0) + " m"})
	}
	if report.StepsKnown {
		rows = append(rows, []string{"Steps", fmt.Sprintf("%d", report.Steps)})
	}
	if report.HeartRateKnown {
		rows = append(rows, []string{"Heart Rate", formatFloat(report.HeartRateBPM, 0) + " bpm"})
	}

	if err := writeTable(w, []string{"Metric", "Value"}, rows, f.config.Compact); err != nil {
		return err
	}

	if len(report.Items) > 0 {
		itemRows := make([][]string, len(report.Items))
		for i, item := range report.Items {
			itemRows[i] = []string{
				item.ExerciseName,
				fmt.Sprintf("%d/%d", item.DoneSetCount, item.SetCount),
				formatFloat(item.VolumeKg, 1),
				formatFloat(item.BestWeightKg, 1),
			}
		}
		if err := writeTable(w, []string{"Exercise", "Sets", "Volume (kg)", "Best (kg)"}, itemRows, f.config.Compact); err != nil {
			return err
		}
	}

	for _, record := range report.NewRecords {
		prev := ""
		if record.PrevBestKg > 0 {
			prev = fmt.Sprintf(" (previous %skg)", formatFloat(record.PrevBestKg, 1))
		}
		if _, err := fmt.Fprintf(w, "New record: %s %skg x %d%s\n",
			record.ExerciseName, formatFloat(record.WeightKg, 1), record.Reps, prev); err != nil {
			return err
		}
	}

	return nil
}

// writeVitals writes the live vitals block.
func (f *tableFormatter) writeVitals(w io.Writer, vitals samples.Vitals) error {
	rows := make([][]string, 0, 4)
	if vitals.HeartRate.Known {
		rows = append(rows, []string{"Heart Rate", formatFloat(vitals.HeartRate.Value, 0) + " bpm"})
	}
	if vitals.Energy.Known {
		rows = append(rows, []string{"Energy", formatFloat(vitals.Energy.Value, 0) + " kcal"})
	}
	if vitals.Distance.Known {
		rows = append(rows, []string{"Distance", formatFloat(vitals.Distance.Value, 0) + " m"})
	}
	if vitals.Steps.Known {
		rows = append(rows, []string{"Steps", formatFloat(vitals.Steps.Value, 0)})
	}

	if len(rows) == 0 {
		return nil
	}
	return writeTable(w, []string{"Vital", "Value"}, rows, f.config.Compact)
}

// syncMark renders the synchronization state of a row. The zero
// status reads as pending.
func syncMark(status workout.SyncStatus) string {
	switch status {
	case workout.SyncSaved:
		return "synced"
	case workout.SyncFailed:
		return "failed"
	default:
		return "pending"
	}
}

// writeTable writes a formatted table.
func writeTable(w io.Writer, header []string, rows [][]string, compact bool) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Write header.
	if err := writeRow(w, header, widths, compact); err != nil {
		return err
	}

	// Write separator.
	if !compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := writeRow(w, separator, widths, compact); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := writeRow(w, row, widths, compact); err != nil {
			return err
		}
	}

	// Add spacing.
	if !compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func writeRow(w io.Writer, cells []string, widths []int, compact bool) error {
	for i, cell := range cells {
		if i > 0 {
			gap := "  "
			if compact {
				gap = " "
			}
			if _, err := fmt.Fprint(w, gap); err != nil {
				return err
			}
		}

		format := fmt.Sprintf("%%-%ds", widths[i])
		if _, err := fmt.Fprintf(w, format, cell); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}
