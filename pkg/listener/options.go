package listener

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Option configures a Listener.
type Option func(*options)

type options struct {
	origin         time.Time
	idleInterval   time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxRetries     uint64
	backoff        backoff.BackOff
	logger         *slog.Logger
}

// WithOrigin sets where reading starts when nothing has been delivered yet.
// Defaults to the time Start is called.
func WithOrigin(t time.Time) Option {
	return func(o *options) {
		o.origin = t
	}
}

// WithIdleInterval sets the pause after an empty receive. Zero polls again
// immediately, which only suits receivers that block while awaiting data.
func WithIdleInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.idleInterval = d
		}
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.initialBackoff = d
		}
	}
}

func WithMaxBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxBackoff = d
		}
	}
}

func WithMaxRetries(n uint64) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithBackOff replaces the retry policy built from the backoff options.
func WithBackOff(b backoff.BackOff) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
