package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geoattend/internal/geo"
)

const (
	DefaultWindow = 10 * time.Minute
	DefaultRadius = 100.0

	maxCodeAttempts = 8
)

// RegistryConfig tunes session creation. Zero values fall back to defaults.
type RegistryConfig struct {
	Window        time.Duration
	DefaultRadius float64
	Now           func() time.Time
	NewCode       CodeGenerator
}

// ApplyDefaults fills unset fields.
func (c *RegistryConfig) ApplyDefaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.DefaultRadius <= 0 {
		c.DefaultRadius = DefaultRadius
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewCode == nil {
		c.NewCode = RandomCode
	}
}

// Registry creates attendance sessions and resolves them while they are active.
type Registry struct {
	store Store
	cfg   RegistryConfig
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store Store, cfg RegistryConfig) *Registry {
	cfg.ApplyDefaults()
	return &Registry{store: store, cfg: cfg}
}

// CreateSessionInput describes a new session. Radius is only consulted when
// Origin is set.
type CreateSessionInput struct {
	CourseCode string
	CreatedBy  string
	Origin     *geo.Point
	Radius     *float64
}

// Create opens a new session expiring one window from now.
func (r *Registry) Create(ctx context.Context, in CreateSessionInput) (Session, error) {
	course := strings.TrimSpace(in.CourseCode)
	if course == "" {
		return Session{}, ErrCourseRequired
	}

	now := r.cfg.Now()
	s := Session{
		ID:         uuid.NewString(),
		CourseCode: course,
		CreatedBy:  in.CreatedBy,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.cfg.Window),
	}
	if in.Origin != nil {
		origin := *in.Origin
		s.Origin = &origin
		s.AllowedRadius = r.cfg.DefaultRadius
		if in.Radius != nil && *in.Radius > 0 {
			s.AllowedRadius = *in.Radius
		}
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.cfg.NewCode()
		if err != nil {
			return Session{}, fmt.Errorf("generate session code: %w", err)
		}
		s.Code = code

		err = r.store.SaveSession(ctx, s)
		if err == nil {
			zerolog.Ctx(ctx).Debug().
				Str("session_id", s.ID).
				Str("course", s.CourseCode).
				Int("attempt", attempt).
				Msg("session created")
			return s, nil
		}
		if !errors.Is(err, ErrCodeInUse) {
			return Session{}, fmt.Errorf("save session: %w", err)
		}
	}

	return Session{}, ErrCodeSpaceExhausted
}

// Lookup addresses a session either by code or by identifier. When both are
// set the code wins.
type Lookup struct {
	ID   string
	Code string
}

// Resolve returns the active session addressed by l. Unknown and expired
// sessions both yield ErrSessionNotFound.
func (r *Registry) Resolve(ctx context.Context, l Lookup) (Session, error) {
	now := r.cfg.Now()

	var (
		s   Session
		err error
	)
	switch {
	case strings.TrimSpace(l.Code) != "":
		s, err = r.store.FindSessionByCode(ctx, NormalizeCode(l.Code), now)
	case strings.TrimSpace(l.ID) != "":
		s, err = r.store.FindSessionByID(ctx, strings.TrimSpace(l.ID), now)
	default:
		return Session{}, ErrLookupRequired
	}
	if err != nil {
		return Session{}, err
	}
	if !s.ActiveAt(now) {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}
