package planner

import "errors"

// Common errors returned by the planner store.
var (
	// ErrNoDate is returned when upserting a plan without a date.
	ErrNoDate = errors.New("planned session has no date")

	// ErrBadDayKey is returned when a date is not a YYYY-MM-DD day key.
	ErrBadDayKey = errors.New("invalid day key")

	// ErrNoID is returned when deleting without an id.
	ErrNoID = errors.New("planned session has no id")
)
