package display

import (
	"fmt"
	"io"

	"trainsync/pkg/planner"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatSession implements Formatter.FormatSession.
func (f *simpleFormatter) FormatSession(w io.Writer, sess workout.Session, vitals samples.Vitals) error {
	title := sess.Title
	if title == "" {
		title = sess.Kind
	}

	if _, err := fmt.Fprintf(w, "%s [%s] %s\n", title, sess.State, formatDuration(sess.Duration())); err != nil {
		return err
	}

	for _, item := range sess.Items {
		if _, err := fmt.Fprintf(w, "%s:", exerciseLabel(item.Exercise)); err != nil {
			return err
		}
		for i, set := range item.Sets {
			sep := " "
			if i > 0 {
				sep = ", "
			}
			if _, err := fmt.Fprintf(w, "%s%s", sep, formatSet(set)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	if f.config.ShowVitals && vitals.HeartRate.Known {
		if _, err := fmt.Fprintf(w, "HR %s bpm\n", formatFloat(vitals.HeartRate.Value, 0)); err != nil {
			return err
		}
	}

	return nil
}

// FormatPlans implements Formatter.FormatPlans.
func (f *simpleFormatter) FormatPlans(w io.Writer, dayKey string, plans []planner.Plan) error {
	for _, plan := range plans {
		at := plan.Time
		if at == "" {
			at = "--:--"
		}
		if _, err := fmt.Fprintf(w, "%s %s: %s (%s)\n", dayKey, at, plan.Name, plan.Kind); err != nil {
			return err
		}
	}

	return nil
}

// FormatReport implements Formatter.FormatReport.
func (f *simpleFormatter) FormatReport(w io.Writer, report summary.Report) error {
	calories := formatFloat(report.CaloriesKcal, 0)
	if !report.CaloriesMeasured {
		calories += " (est)"
	}

	if _, err := fmt.Fprintf(w, "%s | %s | %d/%d sets | %s kg | %s kcal | %d records\n",
		report.Kind,
		formatDuration(report.Elapsed),
		report.DoneSetCount,
		report.SetCount,
		formatFloat(report.TotalVolumeKg, 1),
		calories,
		len(report.NewRecords)); err != nil {
		return err
	}

	return nil
}
