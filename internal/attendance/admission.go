package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/geo"
	"geoattend/internal/metrics"
)

// Admission decides whether a check-in attempt becomes an attendance record.
type Admission struct {
	store Store
	now   func() time.Time
}

// NewAdmission creates an admission evaluator. A nil clock means time.Now.
func NewAdmission(store Store, now func() time.Time) *Admission {
	if now == nil {
		now = time.Now
	}
	return &Admission{store: store, now: now}
}

// Evaluate runs the admission checks in order: course match, geofence, then
// the per-day duplicate check, and persists a PRESENT record on success.
// The store's uniqueness constraint is authoritative; the duplicate scan only
// short-circuits the common case.
func (a *Admission) Evaluate(ctx context.Context, s Session, studentID, claimedCourse string, reported *geo.Point) (Record, error) {
	if claimedCourse != s.CourseCode {
		return Record{}, ErrCourseMismatch
	}

	if s.Origin != nil {
		if reported == nil {
			return Record{}, ErrLocationRequired
		}
		d := geo.Distance(*s.Origin, *reported)
		metrics.AdmissionDistance.Observe(d)
		if d > s.AllowedRadius {
			return Record{}, &OutOfRangeError{Distance: d, Limit: s.AllowedRadius}
		}
	}

	now := a.now()
	today := DateOf(now)

	existing, err := a.store.FindAttendanceByStudent(ctx, studentID)
	if err != nil {
		return Record{}, fmt.Errorf("load attendance for %s: %w", studentID, err)
	}
	for _, r := range existing {
		if r.CourseCode == s.CourseCode && r.LectureDate.Equal(today) {
			return Record{}, ErrAlreadyMarked
		}
	}

	rec, err := a.store.SaveAttendance(ctx, Record{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		CourseCode:  s.CourseCode,
		LectureDate: today,
		Status:      StatusPresent,
		SessionID:   s.ID,
		MarkedAt:    now,
	})
	if err != nil {
		if errors.Is(err, ErrConstraintViolation) {
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, fmt.Errorf("save attendance: %w", err)
	}
	return rec, nil
}
