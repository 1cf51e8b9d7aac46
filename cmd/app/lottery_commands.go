package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/lottery/cmd/app/commands"
	"github.com/allisson/lottery/internal/app"
	"github.com/allisson/lottery/internal/config"
)

// getLotteryCommands returns the campaign and maintenance commands.
func getLotteryCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-campaign",
			Usage: "Create a lottery campaign",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Campaign name",
				},
				&cli.StringFlag{
					Name:     "start",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Window start (RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD)",
				},
				&cli.StringFlag{
					Name:     "end",
					Aliases:  []string{"e"},
					Required: true,
					Usage:    "Window end (RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD)",
				},
				&cli.StringFlag{
					Name:    "timezone",
					Aliases: []string{"tz"},
					Value:   "UTC",
					Usage:   "IANA timezone for start/end values without an offset",
				},
				&cli.IntFlag{
					Name:    "success-target",
					Aliases: []string{"t"},
					Value:   0,
					Usage:   "Number of winners the campaign aims for",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				// Load configuration and build the container
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				// Campaign creation only needs the database and the status cache
				campaignUseCase, err := container.CampaignUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateCampaign(
					ctx,
					campaignUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("name"),
					cmd.String("start"),
					cmd.String("end"),
					cmd.String("timezone"),
					int(cmd.Int("success-target")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "recover-stuck",
			Usage: "Return registrations stuck in Processing to Pending",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				// Recovery reuses the worker configuration for the stuck threshold
				processorUseCase, err := container.ProcessorUseCase()
				if err != nil {
					return err
				}

				return commands.RunRecoverStuck(
					ctx,
					processorUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
