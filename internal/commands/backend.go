package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quicksilver/core/config"
	"github.com/dmitrymomot/quicksilver/core/health"
	"github.com/dmitrymomot/quicksilver/integration/database/pg"
	dbredis "github.com/dmitrymomot/quicksilver/integration/database/redis"
	"github.com/dmitrymomot/quicksilver/integration/logstore/mongolog"
	"github.com/dmitrymomot/quicksilver/integration/logstore/pglog"
	"github.com/dmitrymomot/quicksilver/integration/logstore/redislog"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// Store backend names accepted by --store.
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// ErrTrimUnsupported is returned by trim for stores that cap themselves.
var ErrTrimUnsupported = errors.New("store trims itself; trim only applies to postgres")

// backend is an opened store plus the operations that differ per engine.
type backend struct {
	name   string
	store  broadcast.Store
	awaits bool // receives block until data arrives or the await time passes
	health health.Check
	trim   func(ctx context.Context, before time.Time) (int64, error)
	close  func(ctx context.Context) error
}

func (b *backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

func (b *backend) Trim(ctx context.Context, before time.Time) (int64, error) {
	if b.trim == nil {
		return 0, ErrTrimUnsupported
	}
	return b.trim(ctx, before)
}

// openBackend opens the store named by kind, loading its settings from the
// environment.
func openBackend(ctx context.Context, kind string, log *slog.Logger) (*backend, error) {
	switch kind {
	case StoreMemory:
		ms := broadcast.NewMemoryStore(
			broadcast.WithMemoryAwaitData(time.Second),
			broadcast.WithMemoryStoreLogger(log),
		)
		return &backend{
			name:   kind,
			store:  ms,
			awaits: true,
			close:  func(context.Context) error { return ms.Close() },
		}, nil

	case StoreMongo:
		var cfg mongolog.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		s, err := mongolog.Open(ctx, cfg, mongolog.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return &backend{name: kind, store: s, awaits: cfg.AwaitData, health: s.Healthcheck, close: s.Close}, nil

	case StoreRedis:
		var conn dbredis.Config
		if err := config.Load(&conn); err != nil {
			return nil, err
		}
		var cfg redislog.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		s, err := redislog.Open(ctx, conn, cfg, redislog.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return &backend{name: kind, store: s, awaits: cfg.AwaitData, health: s.Healthcheck, close: s.Close}, nil

	case StorePostgres:
		var conn pg.Config
		if err := config.Load(&conn); err != nil {
			return nil, err
		}
		var cfg pglog.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		s, err := pglog.Open(ctx, conn, cfg, pglog.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return &backend{name: kind, store: s, awaits: cfg.AwaitData, health: s.Healthcheck, trim: s.Trim, close: s.Close}, nil

	default:
		return nil, errors.Join(broadcast.ErrConfigInvalid, fmt.Errorf("unknown store %q", kind))
	}
}
