package cellfmt

import (
	"time"
)

// Status is the tri-state outcome of an availability probe.
type Status int

const (
	// StatusUnavailable means the backend's tool is not installed or not usable.
	StatusUnavailable Status = iota

	// StatusAvailable means the backend can be invoked.
	StatusAvailable

	// StatusError means the probe itself failed, so availability is unknown.
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Availability is the result of probing a backend.
type Availability struct {
	Status Status

	// Err explains an unavailable or failed probe. Nil when available.
	Err error

	// CheckedAt is when the probe ran. Zero for results built without a clock.
	CheckedAt time.Time
}

// OK reports whether the backend can be used. A probe error counts as not OK.
func (a Availability) OK() bool {
	return a.Status == StatusAvailable
}

// Available builds an available result stamped with the current time.
func Available() Availability {
	return Availability{Status: StatusAvailable, CheckedAt: time.Now()}
}

// Unavailable builds an unavailable result with the given reason.
func Unavailable(reason error) Availability {
	return Availability{Status: StatusUnavailable, Err: reason, CheckedAt: time.Now()}
}

// CheckFailed builds a result for a probe that could not complete.
func CheckFailed(err error) Availability {
	return Availability{Status: StatusError, Err: err, CheckedAt: time.Now()}
}
