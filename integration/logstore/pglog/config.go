package pglog

import "time"

// Config controls how the store reads and maintains the message table.
type Config struct {
	AwaitData       bool          `env:"QUICKSILVER_PG_AWAIT_DATA" envDefault:"false"`
	MaxAwaitTime    time.Duration `env:"QUICKSILVER_PG_MAX_AWAIT_TIME" envDefault:"1s"`
	BatchSize       int           `env:"QUICKSILVER_PG_BATCH_SIZE" envDefault:"100"`
	AutoMigrate     bool          `env:"QUICKSILVER_PG_AUTO_MIGRATE" envDefault:"true"`
	MigrationsTable string        `env:"QUICKSILVER_PG_MIGRATIONS_TABLE" envDefault:"quicksilver_migrations"`
}

func (c Config) withDefaults() Config {
	if c.MaxAwaitTime <= 0 {
		c.MaxAwaitTime = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MigrationsTable == "" {
		c.MigrationsTable = "quicksilver_migrations"
	}
	return c
}
