package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/lottery/cmd/app/commands"
	"github.com/allisson/lottery/internal/app"
	"github.com/allisson/lottery/internal/config"
)

// getSystemCommands returns the server, worker and migrate commands.
func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server with the ingestion and processing pipelines",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "api-only",
					Value: false,
					Usage: "Serve the HTTP API only; run the pipelines with the worker command",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version, cmd.Bool("api-only"))
			},
		},
		{
			Name:  "worker",
			Usage: "Run the ingestion and claim-and-process pipelines",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunWorker(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
	}
}
