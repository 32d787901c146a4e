package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geoattend/internal/geo"
)

func newTestService(clk *clock) *Service {
	store := NewMemoryStore()
	return NewService(store,
		NewRegistry(store, RegistryConfig{Now: clk.Now}),
		NewAdmission(store, clk.Now),
	)
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	svc := newTestService(clk)
	campus := geo.Point{Lat: 12.97, Lon: 77.59}

	sess, err := svc.OpenSession(ctx, CreateSessionInput{
		CourseCode: "CS101",
		CreatedBy:  "prof@uni.edu",
		Origin:     &campus,
		Radius:     ptr(50.0),
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, sess.AllowedRadius)

	clk.Advance(2 * time.Minute)

	rec, err := svc.Mark(ctx, MarkInput{
		SessionCode: sess.Code,
		StudentID:   "alice@uni.edu",
		CourseCode:  "CS101",
		Location:    &campus,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPresent, rec.Status)
	require.Equal(t, DateOf(clk.Now()), rec.LectureDate)
	require.Equal(t, sess.ID, rec.SessionID)

	_, err = svc.Mark(ctx, MarkInput{SessionID: sess.ID, StudentID: "alice@uni.edu", CourseCode: "CS101", Location: &campus})
	require.ErrorIs(t, err, ErrAlreadyMarked)

	_, err = svc.Mark(ctx, MarkInput{SessionCode: sess.Code, StudentID: "bob@uni.edu", CourseCode: "MA201", Location: &campus})
	require.ErrorIs(t, err, ErrCourseMismatch)

	clk.Advance(8 * time.Minute)
	_, err = svc.Mark(ctx, MarkInput{SessionCode: sess.Code, StudentID: "bob@uni.edu", CourseCode: "CS101", Location: &campus})
	require.ErrorIs(t, err, ErrSessionNotFound)

	mine, err := svc.StudentHistory(ctx, "alice@uni.edu")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	course, err := svc.CourseHistory(ctx, "CS101")
	require.NoError(t, err)
	require.Equal(t, mine, course)
}

func TestOutcome(t *testing.T) {
	tests := map[string]error{
		"admitted":          nil,
		"session_not_found": ErrSessionNotFound,
		"course_mismatch":   ErrCourseMismatch,
		"location_required": ErrLocationRequired,
		"out_of_range":      &OutOfRangeError{Distance: 120, Limit: 100},
		"already_marked":    ErrAlreadyMarked,
		"error":             ErrCodeSpaceExhausted,
	}
	for want, err := range tests {
		require.Equal(t, want, outcome(err))
	}
}
