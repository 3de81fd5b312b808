package main

import (
	"context"
	"os"

	"github.com/savaki/campus-portal/cmd/campus-portal/commands"
	"github.com/savaki/campus-portal/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "campus-portal",
		Usage: "campus portal login gate administration",
		Description: `Operator tooling for the campus portal login gate.

This tool provides commands for:
  - Generating session signing keys
  - Decoding session cookies for support requests
  - Checking configuration before a deploy
  - Creating the DynamoDB state ledger table`,
		Commands: []*cli.Command{
			commands.KeysCommand(&logger),
			commands.SessionCommand(&logger),
			commands.ConfigCommand(&logger),
			commands.LedgerCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
