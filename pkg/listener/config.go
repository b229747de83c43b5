package listener

import "time"

// Config holds listener loop settings.
type Config struct {
	// IdleInterval is the pause after an empty receive. Zero keeps
	// DefaultIdleInterval; use WithIdleInterval(0) for stores that block while
	// awaiting data.
	IdleInterval   time.Duration `env:"QUICKSILVER_LISTEN_IDLE_INTERVAL" envDefault:"500ms"`
	InitialBackoff time.Duration `env:"QUICKSILVER_LISTEN_INITIAL_BACKOFF" envDefault:"10s"`
	MaxBackoff     time.Duration `env:"QUICKSILVER_LISTEN_MAX_BACKOFF" envDefault:"1m"`
	// MaxRetries bounds consecutive failed receives; zero retries forever.
	MaxRetries uint64 `env:"QUICKSILVER_LISTEN_MAX_RETRIES" envDefault:"0"`
}
