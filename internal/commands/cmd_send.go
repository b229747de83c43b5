package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/quicksilver/core/logger"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// ErrSendToMemory is returned by send for the memory store, which lives only as
// long as the process and so can never reach a listener.
var ErrSendToMemory = errors.New("the memory store is process-local; send needs mongo, redis or postgres")

type SendCmd struct {
	flags    *Flags
	channels []string
	payload  string
	raw      bool
}

// NewSendCmd creates the send command.
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to app.
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Append a message to one or more channels",
		UsageText: "quicksilver send --channel <name> [--channel <name>...] [--payload <json> | payload]",
		Description: `Appends a message to the log, tagged with the given channels.

The memory store is rejected: it only exists inside one process.

The payload is taken from --payload, then the first argument, then stdin. Valid JSON is stored as structured data; anything else is sent as a
string unless --raw forces string payloads.

Examples:
  quicksilver send -c redis -p '{"type":"redis","command":"flushAll"}'
  echo 'reload' | quicksilver send -c workers -c cron`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "channel",
				Aliases:     []string{"c"},
				Usage:       "target channel (repeatable)",
				Required:    true,
				Destination: &cmd.channels,
			},
			&cli.StringFlag{
				Name:        "payload",
				Aliases:     []string{"p"},
				Usage:       "message payload, JSON or plain text",
				Destination: &cmd.payload,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "send the payload as a string even if it is valid JSON",
				Destination: &cmd.raw,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Store == StoreMemory {
		return ErrSendToMemory
	}

	text := cmd.payload
	if text == "" {
		text = c.Args().First()
	}
	if text == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read payload from stdin: %w", err)
		}
		text = strings.TrimSpace(string(b))
	}
	if text == "" {
		return errors.New("payload is empty")
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

	return send(ctx, be.store, cmd.flags, decodePayload(text, cmd.raw), cmd.channels)
}

func send(ctx context.Context, store broadcast.Store, flags *Flags, payload any, channels []string) error {
	sess, err := broadcast.New(store, broadcast.WithLogger(flags.Logger))
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	if err := sess.Send(ctx, payload, channels...); err != nil {
		return err
	}
	flags.Logger.InfoContext(ctx, "Message sent", logger.Channels(broadcast.NormalizeChannels(channels)))
	return nil
}

// decodePayload keeps JSON documents structured so every store persists them
// as maps or lists rather than opaque strings.
func decodePayload(text string, raw bool) any {
	if raw {
		return text
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}
