package samples

import "errors"

var (
	// ErrMetricUnavailable indicates the source cannot provide the
	// requested metric at all.
	ErrMetricUnavailable = errors.New("metric unavailable")

	// ErrUnknownMetric indicates the metric name is not one the
	// package supports.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrBadAnchor indicates the anchor was not issued by this
	// source or is malformed.
	ErrBadAnchor = errors.New("bad anchor")

	// ErrSourceClosed indicates an operation on a closed source.
	ErrSourceClosed = errors.New("source is closed")

	// ErrAlreadySubscribed indicates the metric already has an
	// open subscription on this source.
	ErrAlreadySubscribed = errors.New("metric already subscribed")

	// ErrCollectorClosed indicates an operation on a stopped
	// collector.
	ErrCollectorClosed = errors.New("collector is closed")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("collector already started")
)
