package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"trainsync/pkg/display"
	"trainsync/pkg/logger"
	"trainsync/pkg/rowstore"
	"trainsync/pkg/samples"
	"trainsync/pkg/summary"
	"trainsync/pkg/workout"
)

// summaryCommand prints the post-session report for a finished
// session.
type summaryCommand struct {
	sessionID  string
	format     string
	configPath string
}

// Execute runs the summary command.
func (c *summaryCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})

	store := newStore(cfg, log)
	ctx := context.Background()

	sessions, err := loadFinishedSessions(ctx, store, cfg.API.UserID, "")
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no finished sessions")
	}

	// Newest first.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	target := sessions[0]
	if c.sessionID != "" {
		found := false
		for _, sess := range sessions {
			if sess.RemoteID == c.sessionID {
				target = sess
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no finished session with id %s", c.sessionID)
		}
	}

	// History excludes the session being reported, so its own lifts
	// can register as records.
	prior := make([]workout.Session, 0, len(sessions)-1)
	for _, sess := range sessions {
		if sess.RemoteID != target.RemoteID {
			prior = append(prior, sess)
		}
	}

	format := display.Format(c.format)
	if c.format == "" {
		format = display.Format(cfg.Display.Format)
	}
	formatter := display.New(display.Config{Format: format})

	report := summary.Summarize(target, samples.Vitals{}, summary.BestsFromSessions(prior))
	return formatter.FormatReport(os.Stdout, report)
}

// loadFinishedSessions fetches the user's finished sessions with
// their items and sets. excludeID, when non-empty, is skipped.
func loadFinishedSessions(ctx context.Context, store rowstore.Store, userID, excludeID string) ([]workout.Session, error) {
	rows, err := store.Select(ctx, rowstore.Sessions, rowstore.Filter{
		"user_id": userID,
		"state":   string(workout.StateFinished),
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]workout.Session, 0, len(rows))
	for _, row := range rows {
		if row.ID() == "" || row.ID() == excludeID {
			continue
		}
		sess, loadErr := loadSession(ctx, store, row)
		if loadErr != nil {
			return nil, loadErr
		}
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// loadSession rebuilds one session aggregate from its rows.
func loadSession(ctx context.Context, store rowstore.Store, row rowstore.Row) (workout.Session, error) {
	sess := workout.Session{
		RemoteID: row.ID(),
		State:    workout.State(row.String("state")),
		Kind:     row.String("kind"),
		Title:    row.String("title"),
		PlanID:   row.String("plan_id"),
	}
	if t, ok := row.Time("started_at"); ok {
		sess.StartedAt = t
	}
	if t, ok := row.Time("ended_at"); ok {
		sess.EndedAt = t
	}

	itemRows, err := store.Select(ctx, rowstore.SessionItems, rowstore.Filter{
		"session_id": sess.RemoteID,
	})
	if err != nil {
		return workout.Session{}, err
	}
	sortByOrder(itemRows)

	for _, itemRow := range itemRows {
		item := workout.Item{
			RemoteID: itemRow.ID(),
			Exercise: workout.ExerciseRef{
				CatalogID:    itemRow.String("exercise_id"),
				SnapshotName: itemRow.String("exercise_name"),
			},
		}
		if order, ok := itemRow.Int("order"); ok {
			item.Order = order
		}

		setRows, setErr := store.Select(ctx, rowstore.SessionSets, rowstore.Filter{
			"item_id": item.RemoteID,
		})
		if setErr != nil {
			return workout.Session{}, setErr
		}
		sortByOrder(setRows)

		for _, setRow := range setRows {
			set := workout.Set{RemoteID: setRow.ID()}
			if order, ok := setRow.Int("order"); ok {
				set.Order = order
			}
			if reps, ok := setRow.Int("reps"); ok {
				set.Reps = workout.IntPtr(reps)
			}
			if weight, ok := setRow.Float("weight_kg"); ok {
				set.WeightKg = workout.Float64Ptr(weight)
			}
			if duration, ok := setRow.Int("duration_sec"); ok {
				set.DurationSec = workout.IntPtr(duration)
			}
			if distance, ok := setRow.Float("distance_m"); ok {
				set.DistanceM = workout.Float64Ptr(distance)
			}
			if rpe, ok := setRow.Float("rpe"); ok {
				set.RPE = workout.Float64Ptr(rpe)
			}
			if done, ok := setRow["done"].(bool); ok {
				set.Done = done
			}
			item.Sets = append(item.Sets, set)
		}

		sess.Items = append(sess.Items, item)
	}

	return sess, nil
}

// sortByOrder sorts rows by their order field, append order.
func sortByOrder(rows []rowstore.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := rows[i].Int("order")
		b, _ := rows[j].Int("order")
		return a < b
	})
}
