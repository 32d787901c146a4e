package attendance

import (
	"time"

	"geoattend/internal/geo"
)

// Status is the admission status stored on a record.
type Status string

const (
	StatusPresent Status = "PRESENT"
	// StatusLate is reserved; nothing admits late records yet.
	StatusLate Status = "LATE"
)

// Session is a time-boxed, code-addressable window for marking attendance in one course.
type Session struct {
	ID            string
	Code          string
	CourseCode    string
	CreatedBy     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Origin        *geo.Point
	AllowedRadius float64
}

// ActiveAt reports whether the session still accepts check-ins at t.
// A session expiring exactly at t is no longer active.
func (s Session) ActiveAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}

// Record is a single admitted check-in.
type Record struct {
	ID          string
	StudentID   string
	CourseCode  string
	LectureDate time.Time
	Status      Status
	SessionID   string
	MarkedAt    time.Time
}

// DateOf returns the calendar date of t (in t's location) as midnight UTC,
// which is how lecture dates are stored and compared.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
