package commands

import (
	"context"
	"fmt"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/geo"
)

type SessionsCmd struct {
	Create SessionsCreateCmd `cmd:"" help:"Open an attendance session"`
}

type SessionsCreateCmd struct {
	DB `embed:""`

	Course    string        `help:"Course code" required:""`
	CreatedBy string        `help:"Faculty identity recorded on the session" default:"attendctl"`
	Window    time.Duration `help:"How long the session accepts check-ins" default:"10m" env:"SESSION_WINDOW"`
	Lat       *float64      `help:"Origin latitude; requires --lon"`
	Lon       *float64      `help:"Origin longitude; requires --lat"`
	Radius    *float64      `help:"Allowed radius in meters"`
}

func (s *SessionsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	if (s.Lat == nil) != (s.Lon == nil) {
		return fmt.Errorf("--lat and --lon must be given together")
	}

	b, err := s.open(ctx, false)
	if err != nil {
		return err
	}
	defer b.Close()

	reg := attendance.NewRegistry(b.Store, attendance.RegistryConfig{Window: s.Window})
	sess, err := reg.Create(ctx, attendance.CreateSessionInput{
		CourseCode: s.Course,
		CreatedBy:  s.CreatedBy,
		Origin:     geo.PointFrom(s.Lat, s.Lon),
		Radius:     s.Radius,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.Out, "session %s\n", sess.ID)
	fmt.Fprintf(globals.Out, "  code:    %s\n", sess.Code)
	fmt.Fprintf(globals.Out, "  course:  %s\n", sess.CourseCode)
	fmt.Fprintf(globals.Out, "  expires: %s\n", sess.ExpiresAt.Format(time.RFC3339))
	if sess.Origin != nil {
		fmt.Fprintf(globals.Out, "  fence:   %.6f,%.6f within %.0fm\n", sess.Origin.Lat, sess.Origin.Lon, sess.AllowedRadius)
	}
	return nil
}
