// Package planner maintains the calendar of planned training
// sessions, keyed by day.
//
// The store keeps an in-memory index of plans bucketed by a canonical
// YYYY-MM-DD day key. Range loads replace the index wholesale;
// individual upserts and deletes patch it in place, so a single edit
// never costs a full reload.
//
// Example usage:
//
//	store := planner.New(planner.Config{
//	    Store: rs,
//	    User:  user,
//	}, logger.Default())
//	if err := store.LoadRange(ctx, time.Now()); err != nil {
//	    log.Fatal(err)
//	}
//	for _, plan := range store.SessionsFor(planner.DayKey(time.Now())) {
//	    fmt.Println(plan.Name)
//	}
package planner

import (
	"time"
)

// DayKeyLayout is the canonical day-key format.
const DayKeyLayout = "2006-01-02"

// TimeLayout is the format of a plan's optional time of day.
const TimeLayout = "15:04"

// Plan is one calendar entry. Plans are independent aggregates owned
// by the planner store; they are not part of any live session.
type Plan struct {
	// ID is empty until the plan is persisted.
	ID string

	// Date is the canonical YYYY-MM-DD day key.
	Date string

	// Time is the optional HH:MM time of day; empty means untimed.
	// Untimed plans sort after timed ones within a day.
	Time string

	Kind            string
	Name            string
	DurationMinutes int
	Note            string

	// Meta carries freeform metadata round-tripped to the server.
	Meta map[string]string
}

// DayKey returns the canonical day key for t.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// before reports whether a sorts ahead of b within a day bucket:
// by time of day ascending, untimed entries last, name as tiebreak.
func before(a, b Plan) bool {
	switch {
	case a.Time == "" && b.Time == "":
		return a.Name < b.Name
	case a.Time == "":
		return false
	case b.Time == "":
		return true
	case a.Time != b.Time:
		return a.Time < b.Time
	default:
		return a.Name < b.Name
	}
}
