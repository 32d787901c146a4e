package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"geoattend/internal/geo"
)

// Repository persists sessions and attendance records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSession inserts a session. The code check runs under a transaction
// scoped advisory lock on the code so two creators cannot both claim it.
func (r *Repository) SaveSession(ctx context.Context, s Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.Code); err != nil {
		return fmt.Errorf("lock session code: %w", err)
	}

	var taken bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_sessions WHERE code = $1 AND expires_at > $2
		)
	`, s.Code, s.CreatedAt).Scan(&taken); err != nil {
		return fmt.Errorf("check session code: %w", err)
	}
	if taken {
		return ErrCodeInUse
	}

	var lat, lon *float64
	if s.Origin != nil {
		lat, lon = &s.Origin.Lat, &s.Origin.Lon
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO attendance_sessions (id, code, course_code, created_by, created_at, expires_at, latitude, longitude, allowed_radius)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, s.ID, s.Code, s.CourseCode, s.CreatedBy, s.CreatedAt, s.ExpiresAt, lat, lon, s.AllowedRadius); err != nil {
		return mapPostgresError(err)
	}

	return tx.Commit(ctx)
}

const sessionColumns = `id, code, course_code, created_by, created_at, expires_at, latitude, longitude, allowed_radius`

// FindSessionByCode returns the active session holding code.
func (r *Repository) FindSessionByCode(ctx context.Context, code string, now time.Time) (Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions
		WHERE code = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`, code, now)
	return scanSession(row)
}

// FindSessionByID returns the session with id if it is still active.
func (r *Repository) FindSessionByID(ctx context.Context, id string, now time.Time) (Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions
		WHERE id = $1 AND expires_at > $2
	`, id, now)
	return scanSession(row)
}

// PurgeExpiredSessions deletes sessions that expired before the cutoff.
// Records keep their session reference as a plain identifier.
func (r *Repository) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendance_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		s        Session
		lat, lon *float64
	)
	if err := row.Scan(&s.ID, &s.Code, &s.CourseCode, &s.CreatedBy, &s.CreatedAt, &s.ExpiresAt, &lat, &lon, &s.AllowedRadius); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, mapPostgresError(err)
	}
	if p := geo.PointFrom(lat, lon); p != nil {
		s.Origin = p
	}
	return s, nil
}

// SaveAttendance inserts a record; the unique (student, course, date) index
// decides duplicates.
func (r *Repository) SaveAttendance(ctx context.Context, rec Record) (Record, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance_records (id, student_id, course_code, lecture_date, status, session_id, marked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.StudentID, rec.CourseCode, rec.LectureDate, string(rec.Status), rec.SessionID, rec.MarkedAt)
	if err != nil {
		return Record{}, mapPostgresError(err)
	}
	return rec, nil
}

const recordColumns = `id, student_id, course_code, lecture_date, status, session_id, marked_at`

// FindAttendanceByStudent lists a student's records, newest first.
func (r *Repository) FindAttendanceByStudent(ctx context.Context, studentID string) ([]Record, error) {
	return r.listRecords(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY lecture_date DESC, marked_at DESC
	`, studentID)
}

// FindAttendanceByCourse lists a course's records, newest first.
func (r *Repository) FindAttendanceByCourse(ctx context.Context, courseCode string) ([]Record, error) {
	return r.listRecords(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE course_code = $1
		ORDER BY lecture_date DESC, marked_at DESC
	`, courseCode)
}

func (r *Repository) listRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.CourseCode, &rec.LectureDate, &status, &rec.SessionID, &rec.MarkedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		rec.LectureDate = DateOf(rec.LectureDate)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// mapPostgresError maps PostgreSQL errors onto store sentinels.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if pgErr.ConstraintName == "attendance_records_student_course_day_key" {
			return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Detail)
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict: %w", err)
	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
