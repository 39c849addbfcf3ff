package workout

import "errors"

// Common errors returned by the recorder.
var (
	// ErrRecorderClosed is returned when using a closed recorder.
	ErrRecorderClosed = errors.New("recorder is closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotRunning is returned for intents that require a running or
	// paused session.
	ErrNotRunning = errors.New("session is not running")

	// ErrSessionAborted is returned for intents on an aborted session.
	ErrSessionAborted = errors.New("session was aborted")

	// ErrNoSuchItem is returned when the named item is not in the session.
	ErrNoSuchItem = errors.New("no such item")

	// ErrNoSuchSet is returned when the named set is not in the session.
	ErrNoSuchSet = errors.New("no such set")

	// ErrOrderingViolation is returned when queued set creates are
	// abandoned because the owning item's create failed. The set
	// creation must not be retried independently.
	ErrOrderingViolation = errors.New("set create abandoned: owning item was never persisted")
)
