package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/quicksilver/core/config"
	"github.com/dmitrymomot/quicksilver/core/health"
	"github.com/dmitrymomot/quicksilver/core/logger"
	"github.com/dmitrymomot/quicksilver/core/server"
	"github.com/dmitrymomot/quicksilver/integration/metrics/prommetrics"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
	"github.com/dmitrymomot/quicksilver/pkg/listener"
)

var errLimitReached = errors.New("message limit reached")

type ListenCmd struct {
	flags    *Flags
	channels []string
	since    time.Duration
	limit    int
	opsAddr  string
}

// NewListenCmd creates the listen command.
func NewListenCmd(flags *Flags) *ListenCmd {
	return &ListenCmd{flags: flags}
}

// Register adds the listen command to app.
func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "listen",
		Usage:     "Print messages sent to the subscribed channels",
		UsageText: "quicksilver listen --channel <name> [--since 5m] [--limit N] [--ops-addr :9090]",
		Description: `Tails the log and writes every matching message to stdout as one JSON
object per line. Dead cursors and store outages are retried with backoff.

With --ops-addr the process also serves /metrics, /health/live and
/health/ready.

Examples:
  quicksilver listen -c redis
  quicksilver --store postgres listen -c workers --since 1h --limit 10`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "channel",
				Aliases:     []string{"c"},
				Usage:       "channel to subscribe to (repeatable)",
				Required:    true,
				Destination: &cmd.channels,
			},
			&cli.DurationFlag{
				Name:        "since",
				Usage:       "also deliver messages sent this long before startup",
				Destination: &cmd.since,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "exit after this many messages (0 means no limit)",
				Destination: &cmd.limit,
			},
			&cli.StringFlag{
				Name:        "ops-addr",
				Usage:       "address for metrics and health endpoints (empty disables)",
				Sources:     cli.EnvVars("QUICKSILVER_OPS_ADDR"),
				Destination: &cmd.opsAddr,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ListenCmd) run(ctx context.Context, _ *cli.Command) error {
	log := cmd.flags.Logger

	be, err := openBackend(ctx, cmd.flags.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(context.Background()); err != nil {
			log.Warn("Failed to close store", logger.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs, err := prommetrics.New(reg, be.name)
	if err != nil {
		return err
	}

	sess, err := broadcast.New(be.store,
		broadcast.WithLogger(log),
		broadcast.WithObserver(obs),
		broadcast.WithChannels(cmd.channels...),
	)
	if err != nil {
		return err
	}
	defer sess.Close(context.Background())

	var lcfg listener.Config
	if err := config.Load(&lcfg); err != nil {
		return err
	}
	l, err := listener.NewFromConfig(lcfg, sess, cmd.printer(), listenerOptions(be, time.Now().Add(-cmd.since), log)...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(l.Run(gctx))

	if cmd.opsAddr != "" {
		var scfg server.Config
		if err := config.Load(&scfg); err != nil {
			return err
		}
		scfg.Addr = cmd.opsAddr
		srv, err := server.NewFromConfig(scfg, server.WithLogger(log))
		if err != nil {
			return err
		}
		g.Go(srv.Run(gctx, opsHandler(reg, be, log)))
	}

	err = g.Wait()
	log.Info("Listener stopped", logger.Key("stats", l.Stats()))
	if errors.Is(err, errLimitReached) {
		return nil
	}
	return err
}

// printer writes each message as a JSON line and enforces --limit.
func (cmd *ListenCmd) printer() listener.Handler {
	enc := json.NewEncoder(cmd.flags.out())
	var printed int
	return func(_ context.Context, msg broadcast.Message) error {
		if err := enc.Encode(msg); err != nil {
			return err
		}
		printed++
		if cmd.limit > 0 && printed >= cmd.limit {
			return errLimitReached
		}
		return nil
	}
}

func opsHandler(reg *prometheus.Registry, be *backend, log *slog.Logger) http.Handler {
	var checks []health.Check
	if be.health != nil {
		checks = append(checks, be.health)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", prommetrics.Handler(reg))
	mux.Handle("GET /health/live", health.Liveness())
	mux.Handle("GET /health/ready", health.Readiness(log, 2*time.Second, checks...))
	return mux
}

// listenerOptions polls again right away when the store already waits for
// data on an empty receive.
func listenerOptions(be *backend, origin time.Time, log *slog.Logger) []listener.Option {
	opts := []listener.Option{
		listener.WithOrigin(origin),
		listener.WithLogger(log),
	}
	if be.awaits {
		opts = append(opts, listener.WithIdleInterval(0))
	}
	return opts
}
