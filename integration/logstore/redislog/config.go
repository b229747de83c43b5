package redislog

import "time"

// Config controls the stream that holds the broadcast log.
type Config struct {
	Stream       string        `env:"QUICKSILVER_REDIS_STREAM" envDefault:"quicksilver:messages"`
	MaxLen       int64         `env:"QUICKSILVER_REDIS_MAXLEN" envDefault:"10000"`
	AwaitData    bool          `env:"QUICKSILVER_REDIS_AWAIT_DATA" envDefault:"false"`
	MaxAwaitTime time.Duration `env:"QUICKSILVER_REDIS_MAX_AWAIT_TIME" envDefault:"1s"`
	BatchSize    int64         `env:"QUICKSILVER_REDIS_BATCH_SIZE" envDefault:"100"`
	// ClockSkew widens the stream ID lower bound derived from an origin, since
	// entry IDs come from the Redis clock and timestamps from the publisher's.
	ClockSkew time.Duration `env:"QUICKSILVER_REDIS_CLOCK_SKEW" envDefault:"1s"`
}

// DefaultConfig returns the defaults used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		Stream:       "quicksilver:messages",
		MaxLen:       10000,
		MaxAwaitTime: time.Second,
		BatchSize:    100,
		ClockSkew:    time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.MaxLen <= 0 {
		c.MaxLen = d.MaxLen
	}
	if c.MaxAwaitTime <= 0 {
		c.MaxAwaitTime = d.MaxAwaitTime
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	return c
}
