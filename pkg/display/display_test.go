package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"trainsync/pkg/planner"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

func sampleSession() workout.Session {
	start := time.Now().Add(-10 * time.Minute)
	return workout.Session{
		RemoteID:  "sess-1",
		State:     workout.StateRunning,
		Kind:      "strength",
		Title:     "Morning push",
		StartedAt: start,
		Items: []workout.Item{
			{
				RemoteID: "item-1",
				Sync:     workout.SyncSaved,
				Exercise: workout.ExerciseRef{CatalogID: "bench-press", SnapshotName: "Bench Press"},
				Sets: []workout.Set{
					{Order: 0, Reps: workout.IntPtr(8), WeightKg: workout.Float64Ptr(80), Done: true, RemoteID: "set-1", Sync: workout.SyncSaved},
					{Order: 1, Reps: workout.IntPtr(5), WeightKg: workout.Float64Ptr(90), Sync: workout.SyncPending},
					{Order: 2, Reps: workout.IntPtr(5), WeightKg: workout.Float64Ptr(95), Sync: workout.SyncFailed},
				},
			},
		},
	}
}

func sampleVitals() samples.Vitals {
	return samples.Vitals{
		HeartRate: samples.Reading{Value: 128, Known: true},
		Energy:    samples.Reading{Value: 210, Known: true},
	}
}

func sampleReport() summary.Report {
	return summary.Report{
		Kind:          "strength",
		Title:         "Morning push",
		Elapsed:       45 * time.Minute,
		SetCount:      4,
		DoneSetCount:  3,
		TotalVolumeKg: 1490,
		CaloriesKcal:  337.5,
		Items: []summary.ItemReport{
			{ExerciseName: "Bench Press", SetCount: 3, DoneSetCount: 2, VolumeKg: 1090, BestWeightKg: 90},
		},
		NewRecords: []summary.Record{
			{ExerciseID: "bench-press", ExerciseName: "Bench Press", WeightKg: 90, Reps: 5, PrevBestKg: 85},
		},
	}
}

func TestTableFormatSession(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, ShowVitals: true})

	if err := f.FormatSession(&buf, sampleSession(), sampleVitals()); err != nil {
		t.Fatalf("FormatSession() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Morning push", "Bench Press", "8 x 80.0kg", "synced", "pending", "failed", "128 bpm"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableHidesVitalsWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, ShowVitals: false})

	if err := f.FormatSession(&buf, sampleSession(), sampleVitals()); err != nil {
		t.Fatalf("FormatSession() error = %v", err)
	}

	if strings.Contains(buf.String(), "bpm") {
		t.Errorf("vitals rendered with ShowVitals=false:\n%s", buf.String())
	}
}

func TestTableFormatPlans(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable})

	plans := []planner.Plan{
		{ID: "p1", Date: "2025-03-10", Time: "07:30", Kind: "cardio", Name: "Intervals", DurationMinutes: 30},
		{ID: "p2", Date: "2025-03-10", Kind: "mobility", Name: "Stretch"},
	}

	if err := f.FormatPlans(&buf, "2025-03-10", plans); err != nil {
		t.Fatalf("FormatPlans() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"2025-03-10", "07:30", "Intervals", "30m", "--:--", "Stretch"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"45:00", "3 done / 4 logged", "1490.0 kg", "(estimated)", "New record: Bench Press 90.0kg x 5 (previous 85.0kg)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONFormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatJSON})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	var decoded summary.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TotalVolumeKg != 1490 {
		t.Errorf("TotalVolumeKg = %v, want 1490", decoded.TotalVolumeKg)
	}
}

func TestSimpleFormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "3/4 sets") || !strings.Contains(out, "1 records") {
		t.Errorf("unexpected simple output:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 1 {
		t.Errorf("simple report spans %d lines, want 1", lines)
	}
}

func TestLiveViewClearsScreen(t *testing.T) {
	var buf bytes.Buffer
	live := NewLive(&buf, New(Config{Format: FormatSimple}), true)

	if err := live.Render(sampleSession(), samples.Vitals{}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if !strings.HasPrefix(buf.String(), clearSequence) {
		t.Error("frame does not start with the clear sequence")
	}
}

func TestDefaultFormatIsTable(t *testing.T) {
	if _, ok := New(Config{}).(*tableFormatter); !ok {
		t.Error("New() with empty format did not return the table formatter")
	}
}

func TestFormatSet(t *testing.T) {
	tests := []struct {
		name string
		set  workout.Set
		want string
	}{
		{"reps and weight", workout.Set{Reps: workout.IntPtr(8), WeightKg: workout.Float64Ptr(80), Done: true}, "8 x 80.0kg ✓"},
		{"reps only", workout.Set{Reps: workout.IntPtr(12)}, "12 reps"},
		{"duration only", workout.Set{DurationSec: workout.IntPtr(90)}, "1:30"},
		{"distance and duration", workout.Set{DurationSec: workout.IntPtr(240), DistanceM: workout.Float64Ptr(800)}, "800m in 4:00"},
		{"with rpe", workout.Set{Reps: workout.IntPtr(5), WeightKg: workout.Float64Ptr(100), RPE: workout.Float64Ptr(8.5)}, "5 x 100.0kg @RPE8.5"},
		{"empty", workout.Set{}, "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSet(tt.set); got != tt.want {
				t.Errorf("formatSet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "0:45"},
		{9*time.Minute + 5*time.Second, "9:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-time.Minute, "0:00"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short, 10) = %q", got)
	}
	if got := truncate("a very long session title", 10); len([]rune(got)) != 10 {
		t.Errorf("truncate() length = %d, want 10", len([]rune(got)))
	}
}
