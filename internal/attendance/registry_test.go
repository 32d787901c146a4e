package attendance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geoattend/internal/geo"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)}
}

func ptr[T any](v T) *T { return &v }

// codes returns a generator cycling through seq.
func codes(seq ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		c := seq[i%len(seq)]
		i++
		return c, nil
	}
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("expires exactly one window after creation", func(t *testing.T) {
		clk := newClock()
		reg := NewRegistry(NewMemoryStore(), RegistryConfig{Now: clk.Now})

		s, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101", CreatedBy: "prof@uni.edu"})
		require.NoError(t, err)
		require.Equal(t, clk.Now(), s.CreatedAt)
		require.Equal(t, 10*time.Minute, s.ExpiresAt.Sub(s.CreatedAt))
		require.NotEmpty(t, s.ID)
		require.Equal(t, "CS101", s.CourseCode)
		require.Equal(t, "prof@uni.edu", s.CreatedBy)
		require.Nil(t, s.Origin)
	})

	t.Run("code uses restricted alphabet", func(t *testing.T) {
		reg := NewRegistry(NewMemoryStore(), RegistryConfig{})
		for i := 0; i < 200; i++ {
			s, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
			require.NoError(t, err)
			require.Len(t, s.Code, CodeLength)
			for _, r := range s.Code {
				require.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected symbol %q in %s", r, s.Code)
			}
			require.NotContainsf(t, s.Code, "I", "code %s", s.Code)
			require.NotContainsf(t, s.Code, "O", "code %s", s.Code)
			require.NotContainsf(t, s.Code, "0", "code %s", s.Code)
			require.NotContainsf(t, s.Code, "1", "code %s", s.Code)
		}
	})

	t.Run("radius defaults when origin has none", func(t *testing.T) {
		reg := NewRegistry(NewMemoryStore(), RegistryConfig{})

		s, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101", Origin: &geo.Point{Lat: 12.97, Lon: 77.59}})
		require.NoError(t, err)
		require.Equal(t, 100.0, s.AllowedRadius)

		s, err = reg.Create(ctx, CreateSessionInput{CourseCode: "CS101", Origin: &geo.Point{Lat: 12.97, Lon: 77.59}, Radius: ptr(50.0)})
		require.NoError(t, err)
		require.Equal(t, 50.0, s.AllowedRadius)
	})

	t.Run("blank course rejected", func(t *testing.T) {
		reg := NewRegistry(NewMemoryStore(), RegistryConfig{})
		_, err := reg.Create(ctx, CreateSessionInput{CourseCode: "   "})
		require.ErrorIs(t, err, ErrCourseRequired)
	})

	t.Run("retries while code collides with an active session", func(t *testing.T) {
		clk := newClock()
		store := NewMemoryStore()
		reg := NewRegistry(store, RegistryConfig{Now: clk.Now, NewCode: codes("AAAAAA", "AAAAAA", "BBBBBB")})

		first, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
		require.NoError(t, err)
		require.Equal(t, "AAAAAA", first.Code)

		second, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS102"})
		require.NoError(t, err)
		require.Equal(t, "BBBBBB", second.Code)
	})

	t.Run("code of an expired session can be reused", func(t *testing.T) {
		clk := newClock()
		store := NewMemoryStore()
		reg := NewRegistry(store, RegistryConfig{Now: clk.Now, NewCode: codes("AAAAAA")})

		first, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
		require.NoError(t, err)

		clk.Advance(10 * time.Minute)

		second, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS102"})
		require.NoError(t, err)
		require.Equal(t, first.Code, second.Code)
		require.NotEqual(t, first.ID, second.ID)

		got, err := reg.Resolve(ctx, Lookup{Code: "AAAAAA"})
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		store := NewMemoryStore()
		reg := NewRegistry(store, RegistryConfig{NewCode: codes("AAAAAA")})

		_, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
		require.NoError(t, err)

		_, err = reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
		require.ErrorIs(t, err, ErrCodeSpaceExhausted)
	})

	t.Run("generator failure surfaces", func(t *testing.T) {
		boom := errors.New("entropy unavailable")
		reg := NewRegistry(NewMemoryStore(), RegistryConfig{NewCode: func() (string, error) { return "", boom }})

		_, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
		require.ErrorIs(t, err, boom)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	reg := NewRegistry(NewMemoryStore(), RegistryConfig{Now: clk.Now, NewCode: codes("AB23CD")})

	s, err := reg.Create(ctx, CreateSessionInput{CourseCode: "CS101"})
	require.NoError(t, err)

	t.Run("by code is case insensitive", func(t *testing.T) {
		upper, err := reg.Resolve(ctx, Lookup{Code: "AB23CD"})
		require.NoError(t, err)
		lower, err := reg.Resolve(ctx, Lookup{Code: "ab23cd"})
		require.NoError(t, err)
		require.Equal(t, upper, lower)
		require.Equal(t, s.ID, lower.ID)
	})

	t.Run("by id", func(t *testing.T) {
		got, err := reg.Resolve(ctx, Lookup{ID: s.ID})
		require.NoError(t, err)
		require.Equal(t, s.Code, got.Code)
	})

	t.Run("code wins when both are given", func(t *testing.T) {
		got, err := reg.Resolve(ctx, Lookup{ID: "does-not-exist", Code: "ab23cd"})
		require.NoError(t, err)
		require.Equal(t, s.ID, got.ID)
	})

	t.Run("never issued", func(t *testing.T) {
		_, err := reg.Resolve(ctx, Lookup{Code: "ZZZZZZ"})
		require.ErrorIs(t, err, ErrSessionNotFound)
		_, err = reg.Resolve(ctx, Lookup{ID: "8a4f3c1e-0000-0000-0000-000000000000"})
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("empty lookup", func(t *testing.T) {
		_, err := reg.Resolve(ctx, Lookup{})
		require.ErrorIs(t, err, ErrLookupRequired)
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		clk.t = s.ExpiresAt.Add(-time.Nanosecond)
		_, err := reg.Resolve(ctx, Lookup{Code: s.Code})
		require.NoError(t, err)

		clk.t = s.ExpiresAt
		_, err = reg.Resolve(ctx, Lookup{Code: s.Code})
		require.ErrorIs(t, err, ErrSessionNotFound)
		_, err = reg.Resolve(ctx, Lookup{ID: s.ID})
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestRandomCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := RandomCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(CodeAlphabet, r))
		}
		seen[code] = struct{}{}
	}
	require.Greater(t, len(seen), 990)
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "AB12CD", NormalizeCode(" ab12cd "))
	require.Len(t, CodeAlphabet, 32)
}
