package server

import "time"

// Config holds the operational HTTP server settings.
type Config struct {
	Addr            string        `env:"QUICKSILVER_OPS_ADDR" envDefault:":9090"`
	ReadTimeout     time.Duration `env:"QUICKSILVER_OPS_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"QUICKSILVER_OPS_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"QUICKSILVER_OPS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

const (
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// NewFromConfig creates a Server from cfg. Options override config values.
func NewFromConfig(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddress
	}
	all := append([]Option{
		WithReadTimeout(cfg.ReadTimeout),
		WithWriteTimeout(cfg.WriteTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)
	return New(cfg.Addr, all...), nil
}
