package attendance

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/geo"
)

// pointNorth returns a point m meters due north of (0,0).
func pointNorth(m float64) *geo.Point {
	return &geo.Point{Lat: m / (geo.EarthRadiusKm * 1000) * 180 / math.Pi}
}

func geofenced(origin geo.Point, radius float64) Session {
	return Session{
		ID:            "sess-1",
		Code:          "AB23CD",
		CourseCode:    "CS101",
		Origin:        &origin,
		AllowedRadius: radius,
	}
}

func TestAdmission_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("admits at the origin", func(t *testing.T) {
		clk := newClock()
		adm := NewAdmission(NewMemoryStore(), clk.Now)

		rec, err := adm.Evaluate(ctx, geofenced(geo.Point{}, 100), "stu@uni.edu", "CS101", &geo.Point{})
		require.NoError(t, err)
		require.Equal(t, StatusPresent, rec.Status)
		require.Equal(t, "stu@uni.edu", rec.StudentID)
		require.Equal(t, "CS101", rec.CourseCode)
		require.Equal(t, "sess-1", rec.SessionID)
		require.Equal(t, DateOf(clk.Now()), rec.LectureDate)
		require.Equal(t, clk.Now(), rec.MarkedAt)
		require.NotEmpty(t, rec.ID)
	})

	t.Run("rejects 150m away with distance and limit", func(t *testing.T) {
		adm := NewAdmission(NewMemoryStore(), nil)

		_, err := adm.Evaluate(ctx, geofenced(geo.Point{}, 100), "stu@uni.edu", "CS101", pointNorth(150))
		require.ErrorIs(t, err, ErrOutOfRange)

		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.InDelta(t, 150, oor.Distance, 0.01)
		assert.Equal(t, 100.0, oor.Limit)
		assert.Equal(t, "You are 150m away; must be within 100m", oor.Error())
	})

	t.Run("radius boundary is inclusive", func(t *testing.T) {
		adm := NewAdmission(NewMemoryStore(), nil)
		origin := geo.Point{}
		edge := pointNorth(99.999)

		_, err := adm.Evaluate(ctx, geofenced(origin, 100), "stu@uni.edu", "CS101", edge)
		require.NoError(t, err)
	})

	t.Run("location required for geofenced sessions", func(t *testing.T) {
		adm := NewAdmission(NewMemoryStore(), nil)
		_, err := adm.Evaluate(ctx, geofenced(geo.Point{}, 100), "stu@uni.edu", "CS101", nil)
		require.ErrorIs(t, err, ErrLocationRequired)
	})

	t.Run("location ignored without origin", func(t *testing.T) {
		adm := NewAdmission(NewMemoryStore(), nil)
		s := Session{ID: "sess-1", CourseCode: "CS101"}

		_, err := adm.Evaluate(ctx, s, "a@uni.edu", "CS101", nil)
		require.NoError(t, err)
		_, err = adm.Evaluate(ctx, s, "b@uni.edu", "CS101", &geo.Point{Lat: 45, Lon: 45})
		require.NoError(t, err)
	})

	t.Run("course mismatch wins over every other check", func(t *testing.T) {
		store := &countingStore{Store: NewMemoryStore()}
		adm := NewAdmission(store, nil)

		// Far away, no duplicate history consulted, and no location at all.
		_, err := adm.Evaluate(ctx, geofenced(geo.Point{}, 100), "stu@uni.edu", "CS102", pointNorth(5000))
		require.ErrorIs(t, err, ErrCourseMismatch)
		_, err = adm.Evaluate(ctx, geofenced(geo.Point{}, 100), "stu@uni.edu", "CS102", nil)
		require.ErrorIs(t, err, ErrCourseMismatch)
		require.Zero(t, store.lookups)
	})

	t.Run("course match is case sensitive", func(t *testing.T) {
		adm := NewAdmission(NewMemoryStore(), nil)
		_, err := adm.Evaluate(ctx, Session{CourseCode: "CS101"}, "stu@uni.edu", "cs101", nil)
		require.ErrorIs(t, err, ErrCourseMismatch)
	})

	t.Run("second mark same day is rejected", func(t *testing.T) {
		clk := newClock()
		adm := NewAdmission(NewMemoryStore(), clk.Now)
		s := Session{ID: "sess-1", CourseCode: "CS101"}

		_, err := adm.Evaluate(ctx, s, "stu@uni.edu", "CS101", nil)
		require.NoError(t, err)

		clk.Advance(3 * time.Hour)
		_, err = adm.Evaluate(ctx, s, "stu@uni.edu", "CS101", nil)
		require.ErrorIs(t, err, ErrAlreadyMarked)
	})

	t.Run("next day is a new lecture", func(t *testing.T) {
		clk := newClock()
		store := NewMemoryStore()
		adm := NewAdmission(store, clk.Now)
		s := Session{ID: "sess-1", CourseCode: "CS101"}

		_, err := adm.Evaluate(ctx, s, "stu@uni.edu", "CS101", nil)
		require.NoError(t, err)

		clk.Advance(24 * time.Hour)
		_, err = adm.Evaluate(ctx, s, "stu@uni.edu", "CS101", nil)
		require.NoError(t, err)

		recs, err := store.FindAttendanceByStudent(ctx, "stu@uni.edu")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.True(t, recs[0].LectureDate.After(recs[1].LectureDate))
	})

	t.Run("insert-time constraint maps to already marked", func(t *testing.T) {
		adm := NewAdmission(constraintStore{}, nil)
		_, err := adm.Evaluate(ctx, Session{CourseCode: "CS101"}, "stu@uni.edu", "CS101", nil)
		require.ErrorIs(t, err, ErrAlreadyMarked)
	})

	t.Run("infrastructure errors pass through", func(t *testing.T) {
		boom := errors.New("connection refused")
		adm := NewAdmission(failingStore{err: boom}, nil)
		_, err := adm.Evaluate(ctx, Session{CourseCode: "CS101"}, "stu@uni.edu", "CS101", nil)
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, ErrAlreadyMarked)
	})
}

func TestAdmission_ConcurrentMarks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	adm := NewAdmission(store, nil)
	s := geofenced(geo.Point{Lat: 12.97, Lon: 77.59}, 50)

	const attempts = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := adm.Evaluate(ctx, s, "stu@uni.edu", "CS101", &geo.Point{Lat: 12.97, Lon: 77.59})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrAlreadyMarked):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, admitted)
	require.Equal(t, attempts-1, rejected)

	recs, err := store.FindAttendanceByCourse(ctx, "CS101")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

// countingStore records how often attendance history is consulted.
type countingStore struct {
	Store
	lookups int
}

func (c *countingStore) FindAttendanceByStudent(ctx context.Context, studentID string) ([]Record, error) {
	c.lookups++
	return c.Store.FindAttendanceByStudent(ctx, studentID)
}

// constraintStore simulates a concurrent insert that slipped past the fast path.
type constraintStore struct{ Store }

func (constraintStore) FindAttendanceByStudent(context.Context, string) ([]Record, error) {
	return nil, nil
}

func (constraintStore) SaveAttendance(context.Context, Record) (Record, error) {
	return Record{}, ErrConstraintViolation
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) FindAttendanceByStudent(context.Context, string) ([]Record, error) {
	return nil, f.err
}
