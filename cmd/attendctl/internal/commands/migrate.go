package commands

import (
	"context"
	"fmt"

	"geoattend/internal/attendance"
)

type MigrateCmd struct {
	DatabaseURL string `help:"Postgres connection string" name:"database-url" required:"" env:"DATABASE_URL"`
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	b, err := DB{Store: "postgres", DatabaseURL: m.DatabaseURL}.open(ctx, false)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := attendance.Migrate(ctx, b.Pool); err != nil {
		return err
	}
	fmt.Fprintln(globals.Out, "migrations applied")
	return nil
}
