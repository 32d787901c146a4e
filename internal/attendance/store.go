package attendance

import (
	"context"
	"time"
)

// Store is the persistence boundary for sessions and attendance records.
//
// SaveSession must fail with ErrCodeInUse when another session holding the same
// code is still active at session.CreatedAt, and SaveAttendance must fail with
// ErrConstraintViolation when the (student, course, lecture date) triple exists.
// Both checks have to be atomic with the insert.
type Store interface {
	SaveSession(ctx context.Context, session Session) error
	FindSessionByCode(ctx context.Context, code string, now time.Time) (Session, error)
	FindSessionByID(ctx context.Context, id string, now time.Time) (Session, error)
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)

	SaveAttendance(ctx context.Context, rec Record) (Record, error)
	// FindAttendanceByStudent and FindAttendanceByCourse order by lecture date
	// descending, newest mark first within a day.
	FindAttendanceByStudent(ctx context.Context, studentID string) ([]Record, error)
	FindAttendanceByCourse(ctx context.Context, courseCode string) ([]Record, error)
}
