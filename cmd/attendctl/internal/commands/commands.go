package commands

import (
	"context"
	"io"

	"geoattend/internal/attendance"
	"geoattend/internal/store"
)

type Globals struct {
	Debug   bool
	Version string
	Out     io.Writer
}

// DB holds the store flags shared by commands that touch persistence.
type DB struct {
	Store       string `help:"Store backend" enum:"memory,postgres" default:"postgres" env:"STORE_BACKEND"`
	DatabaseURL string `help:"Postgres connection string" name:"database-url" env:"DATABASE_URL"`
}

func (d DB) open(ctx context.Context, migrate bool) (*attendance.Backend, error) {
	return attendance.OpenBackend(ctx, d.Store, store.PoolConfig{ConnString: d.DatabaseURL, MaxConns: 2, MinConns: 1}, migrate)
}
