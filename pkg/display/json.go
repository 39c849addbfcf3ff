package display

import (
	"encoding/json"
	"io"

	"trainsync/pkg/planner"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

func (f *jsonFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder
}

// FormatSession implements Formatter.FormatSession.
func (f *jsonFormatter) FormatSession(w io.Writer, sess workout.Session, vitals samples.Vitals) error {
	payload := struct {
		Session workout.Session `json:"session"`
		Vitals  samples.Vitals  `json:"vitals,omitempty"`
	}{Session: sess}

	if f.config.ShowVitals {
		payload.Vitals = vitals
	}

	return f.encoder(w).Encode(payload)
}

// FormatPlans implements Formatter.FormatPlans.
func (f *jsonFormatter) FormatPlans(w io.Writer, dayKey string, plans []planner.Plan) error {
	payload := struct {
		Day   string         `json:"day"`
		Plans []planner.Plan `json:"plans"`
	}{Day: dayKey, Plans: plans}

	return f.encoder(w).Encode(payload)
}

// FormatReport implements Formatter.FormatReport.
func (f *jsonFormatter) FormatReport(w io.Writer, report summary.Report) error {
	return f.encoder(w).Encode(report)
}
