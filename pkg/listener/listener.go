package listener

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dmitrymomot/quicksilver/core/logger"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// Receiver is the part of broadcast.Session the loop depends on.
type Receiver interface {
	Receive(ctx context.Context, origin time.Time) (broadcast.Message, bool, error)
	Checkpoint() time.Time
}

// Handler processes one delivered message. A returned error stops the loop.
type Handler func(ctx context.Context, msg broadcast.Message) error

// Listener calls Receive in a loop, hands messages to a Handler and backs off
// when the cursor dies or the store is unavailable.
type Listener struct {
	recv    Receiver
	handler Handler
	opts    options
	bo      backoff.BackOff
	running atomic.Bool

	delivered atomic.Int64
	empty     atomic.Int64
	failures  atomic.Int64
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Delivered int64 // messages handed to the handler
	Empty     int64 // receives that found nothing
	Failures  int64 // dead cursors and store outages
	IsRunning bool
}

// DefaultIdleInterval is the pause after an empty receive unless configured.
const DefaultIdleInterval = 500 * time.Millisecond

// New creates a listener. Defaults: DefaultIdleInterval pause, backoff from
// 10s up to 1m, unlimited retries.
func New(recv Receiver, handler Handler, opts ...Option) (*Listener, error) {
	if recv == nil {
		return nil, ErrReceiverNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	o := options{
		idleInterval:   DefaultIdleInterval,
		initialBackoff: 10 * time.Second,
		maxBackoff:     time.Minute,
		logger:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	bo := o.backoff
	if bo == nil {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = o.initialBackoff
		exp.MaxInterval = max(o.maxBackoff, o.initialBackoff)
		exp.MaxElapsedTime = 0
		bo = exp
	}
	if o.maxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, o.maxRetries)
	}

	return &Listener{recv: recv, handler: handler, opts: o, bo: bo}, nil
}

// NewFromConfig creates a listener from cfg. Options override config values.
func NewFromConfig(cfg Config, recv Receiver, handler Handler, opts ...Option) (*Listener, error) {
	all := []Option{
		WithInitialBackoff(cfg.InitialBackoff),
		WithMaxBackoff(cfg.MaxBackoff),
		WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.IdleInterval > 0 {
		all = append(all, WithIdleInterval(cfg.IdleInterval))
	}
	all = append(all, opts...)
	return New(recv, handler, all...)
}

// Start runs the loop until ctx is done, the handler fails or retries are
// exhausted. It returns ctx.Err() on cancellation.
func (l *Listener) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	origin := l.opts.origin
	if origin.IsZero() {
		origin = time.Now()
	}
	l.bo.Reset()

	l.opts.logger.InfoContext(ctx, "Listener started", logger.Origin(origin))

	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			l.opts.logger.InfoContext(context.Background(), "Listener stopping")
			return err
		}

		from := origin
		if cp := l.recv.Checkpoint(); !cp.IsZero() {
			from = cp
		}

		msg, ok, err := l.recv.Receive(ctx, from)
		switch {
		case err == nil && ok:
			l.bo.Reset()
			retries = 0
			if err := l.handler(ctx, msg); err != nil {
				return errors.Join(ErrHandlerFailed, err)
			}
			l.delivered.Add(1)

		case err == nil:
			l.empty.Add(1)
			if err := sleep(ctx, l.opts.idleInterval); err != nil {
				return err
			}

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err

		case errors.Is(err, broadcast.ErrCursorDead), errors.Is(err, broadcast.ErrStoreUnavailable):
			l.failures.Add(1)
			retries++
			wait := l.bo.NextBackOff()
			if wait == backoff.Stop {
				return errors.Join(ErrRetriesExhausted, err)
			}
			l.opts.logger.WarnContext(ctx, "Receive failed, backing off",
				logger.Error(err),
				logger.Backoff(wait),
				logger.RetryCount(retries),
				logger.Origin(from),
			)
			if err := sleep(ctx, wait); err != nil {
				return err
			}

		default:
			return err
		}
	}
}

// Run adapts Start for errgroup. Cancellation is a clean exit.
func (l *Listener) Run(ctx context.Context) func() error {
	return func() error {
		err := l.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Stats returns the current counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Delivered: l.delivered.Load(),
		Empty:     l.empty.Load(),
		Failures:  l.failures.Load(),
		IsRunning: l.running.Load(),
	}
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("delivered", s.Delivered),
		slog.Int64("empty", s.Empty),
		slog.Int64("failures", s.Failures),
		slog.Bool("running", s.IsRunning),
	)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
