package attendance

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"geoattend/internal/geo"
	"geoattend/internal/metrics"
)

// Service coordinates session creation, admission and history lookups.
type Service struct {
	store     Store
	registry  *Registry
	admission *Admission
}

// NewService wires a registry and admission evaluator over one store.
func NewService(store Store, registry *Registry, admission *Admission) *Service {
	return &Service{store: store, registry: registry, admission: admission}
}

// OpenSession creates a new attendance window.
func (s *Service) OpenSession(ctx context.Context, in CreateSessionInput) (Session, error) {
	sess, err := s.registry.Create(ctx, in)
	if err != nil {
		return Session{}, err
	}
	metrics.SessionsCreated.Inc()
	zerolog.Ctx(ctx).Info().
		Str("session_id", sess.ID).
		Str("course", sess.CourseCode).
		Str("created_by", sess.CreatedBy).
		Bool("geofenced", sess.Origin != nil).
		Time("expires_at", sess.ExpiresAt).
		Msg("attendance session opened")
	return sess, nil
}

// MarkInput is a student's check-in attempt.
type MarkInput struct {
	SessionID   string
	SessionCode string
	StudentID   string
	CourseCode  string
	Location    *geo.Point
}

// Mark resolves the addressed session and runs admission against it.
func (s *Service) Mark(ctx context.Context, in MarkInput) (Record, error) {
	sess, err := s.registry.Resolve(ctx, Lookup{ID: in.SessionID, Code: in.SessionCode})
	if err != nil {
		metrics.Admissions.WithLabelValues(outcome(err)).Inc()
		return Record{}, err
	}

	rec, err := s.admission.Evaluate(ctx, sess, in.StudentID, in.CourseCode, in.Location)
	metrics.Admissions.WithLabelValues(outcome(err)).Inc()

	logger := zerolog.Ctx(ctx).With().
		Str("session_id", sess.ID).
		Str("student", in.StudentID).
		Str("course", in.CourseCode).
		Logger()
	if err != nil {
		logger.Info().Err(err).Msg("attendance rejected")
		return Record{}, err
	}
	logger.Info().Str("record_id", rec.ID).Msg("attendance admitted")
	return rec, nil
}

// StudentHistory lists a student's records, newest lecture first.
func (s *Service) StudentHistory(ctx context.Context, studentID string) ([]Record, error) {
	return s.store.FindAttendanceByStudent(ctx, studentID)
}

// CourseHistory lists a course's records, newest lecture first.
func (s *Service) CourseHistory(ctx context.Context, courseCode string) ([]Record, error) {
	return s.store.FindAttendanceByCourse(ctx, courseCode)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrLookupRequired):
		return "session_not_found"
	case errors.Is(err, ErrCourseMismatch):
		return "course_mismatch"
	case errors.Is(err, ErrLocationRequired):
		return "location_required"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrAlreadyMarked):
		return "already_marked"
	default:
		return "error"
	}
}
