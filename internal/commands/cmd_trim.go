package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/quicksilver/core/logger"
)

type TrimCmd struct {
	flags     *Flags
	olderThan time.Duration
}

// NewTrimCmd creates the trim command.
func NewTrimCmd(flags *Flags) *TrimCmd {
	return &TrimCmd{flags: flags, olderThan: 24 * time.Hour}
}

// Register adds the trim command to app.
func (cmd *TrimCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "trim",
		Usage: "Delete old messages from a postgres log",
		Description: `Deletes messages older than --older-than and advances the trim watermark.
Listeners whose cursor pointed into the deleted range reopen from their
checkpoint. MongoDB capped collections, Redis streams and the memory store cap
themselves, so trim rejects them.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "older-than",
				Usage:       "age of the newest message to delete",
				Value:       24 * time.Hour,
				Destination: &cmd.olderThan,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *TrimCmd) run(ctx context.Context, _ *cli.Command) error {
	if cmd.olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive, got %s", cmd.olderThan)
	}

	be, err := openBackend(ctx, cmd.flags.Store, cmd.flags.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(context.Background()); err != nil {
			cmd.flags.Logger.Warn("Failed to close store", logger.Error(err))
		}
	}()

	n, err := be.Trim(ctx, time.Now().Add(-cmd.olderThan))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.flags.out(), "deleted %d messages\n", n)
	return err
}
