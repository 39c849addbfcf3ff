// Package summary derives the post-session report from a finished
// session snapshot, the measured vitals, and the athlete's lifting
// history. Summarize is a pure function: identical inputs always
// produce the identical report, and nothing here talks to the
// network.
package summary

import (
	"sort"
	"strings"
	"time"

	"trainsync/pkg/samples"
	"trainsync/pkg/workout"
)

// referenceBodyMassKg feeds the calorie estimate when the feed did
// not measure energy. A profile-supplied mass would be better; this
// is the fallback of the fallback.
const referenceBodyMassKg = 75.0

// metByKind maps a session kind to a metabolic equivalent used for
// the estimated calorie fallback.
var metByKind = map[string]float64{
	"strength":  6.0,
	"cardio":    8.0,
	"hiit":      9.0,
	"mobility":  2.5,
	"endurance": 7.0,
}

const defaultMET = 5.0

// Records maps an exercise catalog id to the best weight ever logged
// for it, in kilograms.
type Records map[string]float64

// Record is a new personal best achieved during the session.
type Record struct {
	ExerciseID   string
	ExerciseName string
	WeightKg     float64
	Reps         int
	PrevBestKg   float64 // zero when the exercise had no history
}

// ItemReport is the per-exercise slice of the report.
type ItemReport struct {
	ExerciseID   string
	ExerciseName string
	SetCount     int
	DoneSetCount int
	VolumeKg     float64
	BestWeightKg float64
}

// Report is the derived post-session summary.
type Report struct {
	Kind      string
	Title     string
	State     workout.State
	StartedAt time.Time
	EndedAt   time.Time
	Elapsed   time.Duration

	SetCount     int
	DoneSetCount int

	// TotalVolumeKg is reps times weight summed over done sets.
	TotalVolumeKg float64

	// CaloriesKcal is the measured energy burn when the feed
	// provided one, otherwise a MET-based estimate.
	CaloriesKcal     float64
	CaloriesMeasured bool

	DistanceM     float64
	DistanceKnown bool

	Steps      int
	StepsKnown bool

	// HeartRateBPM is the last measured reading of the session.
	HeartRateBPM   float64
	HeartRateKnown bool

	Items      []ItemReport
	NewRecords []Record
}

// Summarize builds the report for a session. The history holds prior
// personal bests; a done set whose weight exceeds the prior best at
// any positive rep count is a new record.
func Summarize(sess workout.Session, vitals samples.Vitals, history Records) Report {
	report := Report{
		Kind:      sess.Kind,
		Title:     sess.Title,
		State:     sess.State,
		StartedAt: sess.StartedAt,
		EndedAt:   sess.EndedAt,
		Elapsed:   sess.Duration(),
	}

	// Best candidate weight per exercise across this session.
	type candidate struct {
		name     string
		weightKg float64
		reps     int
	}
	candidates := make(map[string]candidate)

	for _, item := range sess.Items {
		ir := ItemReport{
			ExerciseID:   item.Exercise.CatalogID,
			ExerciseName: exerciseName(item.Exercise),
			SetCount:     len(item.Sets),
		}

		for _, set := range item.Sets {
			report.SetCount++
			if !set.Done {
				continue
			}
			report.DoneSetCount++
			ir.DoneSetCount++

			if set.Reps == nil || set.WeightKg == nil {
				continue
			}
			reps, weight := *set.Reps, *set.WeightKg
			if reps <= 0 || weight <= 0 {
				continue
			}

			volume := float64(reps) * weight
			ir.VolumeKg += volume
			report.TotalVolumeKg += volume
			if weight > ir.BestWeightKg {
				ir.BestWeightKg = weight
			}

			if item.Exercise.CatalogID != "" {
				best := candidates[item.Exercise.CatalogID]
				if weight > best.weightKg {
					candidates[item.Exercise.CatalogID] = candidate{
						name:     ir.ExerciseName,
						weightKg: weight,
						reps:     reps,
					}
				}
			}
		}

		report.Items = append(report.Items, ir)
	}

	for id, cand := range candidates {
		prev := history[id]
		if cand.weightKg > prev {
			report.NewRecords = append(report.NewRecords, Record{
				ExerciseID:   id,
				ExerciseName: cand.name,
				WeightKg:     cand.weightKg,
				Reps:         cand.reps,
				PrevBestKg:   prev,
			})
		}
	}
	sort.Slice(report.NewRecords, func(i, j int) bool {
		return report.NewRecords[i].ExerciseID < report.NewRecords[j].ExerciseID
	})

	if vitals.Energy.Known {
		report.CaloriesKcal = vitals.Energy.Value
		report.CaloriesMeasured = true
	} else {
		report.CaloriesKcal = estimateCalories(sess.Kind, report.Elapsed)
	}
	if vitals.Distance.Known {
		report.DistanceM = vitals.Distance.Value
		report.DistanceKnown = true
	}
	if vitals.Steps.Known {
		report.Steps = int(vitals.Steps.Value)
		report.StepsKnown = true
	}
	if vitals.HeartRate.Known {
		report.HeartRateBPM = vitals.HeartRate.Value
		report.HeartRateKnown = true
	}

	return report
}

// BestsFromSessions folds prior sessions into a Records history. Only
// done sets with a positive rep count contribute.
func BestsFromSessions(sessions []workout.Session) Records {
	records := make(Records)
	for _, sess := range sessions {
		for _, item := range sess.Items {
			id := item.Exercise.CatalogID
			if id == "" {
				continue
			}
			for _, set := range item.Sets {
				if !set.Done || set.Reps == nil || *set.Reps <= 0 || set.WeightKg == nil {
					continue
				}
				if *set.WeightKg > records[id] {
					records[id] = *set.WeightKg
				}
			}
		}
	}
	return records
}

// estimateCalories approximates energy burn from session kind and
// elapsed time when no measured value exists.
func estimateCalories(kind string, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	met, ok := metByKind[strings.ToLower(kind)]
	if !ok {
		met = defaultMET
	}
	return met * referenceBodyMassKg * elapsed.Hours()
}

// exerciseName prefers the snapshot name captured at logging time.
func exerciseName(ref workout.ExerciseRef) string {
	if ref.SnapshotName != "" {
		return ref.SnapshotName
	}
	return ref.CatalogID
}
