package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound covers both unknown and expired sessions; the two are
	// deliberately indistinguishable to callers.
	ErrSessionNotFound    = errors.New("invalid or expired session")
	ErrLookupRequired     = errors.New("session id or session code required")
	ErrCourseRequired     = errors.New("course code required")
	ErrCourseMismatch     = errors.New("course code does not match the session")
	ErrLocationRequired   = errors.New("location is required to mark attendance")
	ErrOutOfRange         = errors.New("outside the session geofence")
	ErrAlreadyMarked      = errors.New("attendance already marked for this course today")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique session code")

	// Store level errors.
	ErrCodeInUse           = errors.New("session code held by an active session")
	ErrConstraintViolation = errors.New("attendance record violates uniqueness constraint")
)

// OutOfRangeError is returned when a reported location falls outside the
// session geofence. It matches ErrOutOfRange with errors.Is.
type OutOfRangeError struct {
	Distance float64
	Limit    float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("You are %.0fm away; must be within %.0fm", e.Distance, e.Limit)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
