package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist or is
	// not owned by the caller.
	ErrNotFound = errors.New("persistence: not found")
	// ErrConstraintViolation is returned when a write breaks a schema
	// constraint, such as the one-session-per-user unique index.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrNoOpenSegment is returned by CloseOpenSegment when the session has
	// no segment with a null end time.
	ErrNoOpenSegment = errors.New("persistence: no open segment")
	// ErrSegmentAlreadyOpen is returned by OpenRunningSegment when the
	// session already has an open segment.
	ErrSegmentAlreadyOpen = errors.New("persistence: segment already open")
)
