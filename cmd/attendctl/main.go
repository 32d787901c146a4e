package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"geoattend/cmd/attendctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Migrate    commands.MigrateCmd    `cmd:"" help:"Apply database migrations"`
		Token      commands.TokenCmd      `cmd:"" help:"Issue a JWT for an identity and role"`
		Sessions   commands.SessionsCmd   `cmd:"" help:"Manage attendance sessions"`
		Attendance commands.AttendanceCmd `cmd:"" help:"Inspect attendance records"`
		Debug      bool                   `help:"Enable debug mode."`
		Version    kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("attendctl"),
		kong.Description("Administrative tooling for the attendance service."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Out: os.Stdout})
	cmd.FatalIfErrorf(err)
}
