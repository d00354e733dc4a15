package session

import (
	"errors"
	"fmt"
)

var (
	// ErrQualityUnavailable is returned when no variant of a master playlist matches the requested quality.
	ErrQualityUnavailable = errors.New("requested quality unavailable")
	// ErrAlreadyStarted is returned by Start on a session that is running or has run.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrStopped is returned by Start on a session stopped before it ran.
	ErrStopped = errors.New("session stopped")
	// ErrInvalidURL is returned by New for a playlist URL that is not absolute http(s).
	ErrInvalidURL = errors.New("playlist URL must be an absolute http(s) URL")

	errTooManyHops = errors.New("too many nested master playlists")
)

// FatalStartupError reports a failure before any segment was emitted.
// The session ends without a finish event.
type FatalStartupError struct {
	URL string
	Err error
}

func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("session failed before the first segment (%s): %v", e.URL, e.Err)
}

func (e *FatalStartupError) Unwrap() error { return e.Err }
