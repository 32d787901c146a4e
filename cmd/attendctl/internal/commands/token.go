package commands

import (
	"context"
	"fmt"
	"time"

	"geoattend/internal/auth"
)

type TokenCmd struct {
	Subject    string        `help:"Subject identifier (email)" required:""`
	Role       string        `help:"Role: student, faculty or admin" required:""`
	TTL        time.Duration `help:"Access token lifetime" default:"15m" env:"ACCESS_TTL"`
	Refresh    bool          `help:"Also print a refresh token on a second line"`
	RefreshTTL time.Duration `help:"Refresh token lifetime" default:"24h" env:"REFRESH_TTL"`
	Issuer     string        `help:"JWT issuer" default:"geoattend" env:"JWT_ISSUER"`
	SigningKey string        `help:"JWT signing key" required:"" env:"JWT_SIGNING_KEY"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	role, err := auth.ParseRole(t.Role)
	if err != nil {
		return err
	}

	pair, err := auth.Issue(t.Subject, role, t.Issuer, t.SigningKey, t.TTL, t.RefreshTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.Out, pair.AccessToken)
	if t.Refresh {
		fmt.Fprintln(globals.Out, pair.RefreshToken)
	}
	return nil
}
