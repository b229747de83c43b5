package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/quicksilver/core/logger"
)

// NewApp assembles the root command with every subcommand registered.
func NewApp(flags *Flags, version string) *cli.Command {
	app := &cli.Command{
		Name:    "quicksilver",
		Usage:   "Broadcast messages to channels over a shared capped log",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("QUICKSILVER_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (text, json)",
				Sources:     cli.EnvVars("QUICKSILVER_LOG_FORMAT"),
				Value:       "text",
				Destination: &flags.LogFormat,
			},
			&cli.StringFlag{
				Name:        "store",
				Aliases:     []string{"s"},
				Usage:       "log store (memory, mongo, redis, postgres)",
				Sources:     cli.EnvVars("QUICKSILVER_STORE"),
				Value:       StoreMongo,
				Destination: &flags.Store,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			if err := flags.SetupLogger(); err != nil {
				return ctx, err
			}
			flags.Logger.DebugContext(ctx, "Starting", logger.Version(version))
			return ctx, nil
		},
	}

	app = NewSendCmd(flags).Register(app)
	app = NewListenCmd(flags).Register(app)
	app = NewTrimCmd(flags).Register(app)
	return app
}
