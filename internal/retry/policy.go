// Package retry decides whether a failed playlist fetch is worth repeating.
package retry

import (
	"hlstaild/internal/config"
	"hlstaild/internal/fetch"
	"time"
)

// Decision is the outcome of Policy.Decide. At most one of Retry and Fatal is
// set; when neither is, the stream ends gracefully.
type Decision struct {
	Retry bool
	Delay time.Duration
	Fatal bool
}

// Policy is a bounded linear backoff restricted to transient transport errors.
type Policy struct {
	MaxRetries int
	Floor      time.Duration
	Step       time.Duration
}

// FromConfig builds a Policy from the session configuration.
func FromConfig(cfg config.Session) Policy {
	return Policy{
		MaxRetries: cfg.MaxRetries,
		Floor:      cfg.BackoffFloor,
		Step:       cfg.BackoffStep,
	}
}

// Decide classifies err for a session that has already failed attempt times
// in a row. A session that never emitted a segment cannot retry at all.
func (p Policy) Decide(err error, attempt int, hasEmitted bool) Decision {
	if !hasEmitted {
		return Decision{Fatal: true}
	}
	if !Transient(err) || attempt >= p.MaxRetries {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.Backoff(attempt)}
}

// Backoff returns the delay before retry number attempt+1.
func (p Policy) Backoff(attempt int) time.Duration {
	return max(p.Floor, p.Step*time.Duration(attempt+1))
}

// Transient reports whether err carries a connection-reset or timeout code.
func Transient(err error) bool {
	switch fetch.Code(err) {
	case fetch.CodeConnReset, fetch.CodeTimeout:
		return true
	}
	return false
}
