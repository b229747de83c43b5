package pglog

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/quicksilver/integration/database/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates or upgrades the message and trim state tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) error {
	return pg.MigrateFS(ctx, pool, migrations, "migrations", table, log)
}
