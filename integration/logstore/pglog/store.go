package pglog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/quicksilver/core/logger"
	"github.com/dmitrymomot/quicksilver/integration/database/pg"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// NotifyChannel is the LISTEN/NOTIFY channel signalled on every append.
const NotifyChannel = "quicksilver_append"

// ErrTrimmed is returned by HasNext when Trim removed rows past the cursor position.
var ErrTrimmed = errors.New("pglog: rows trimmed past cursor position")

const (
	appendSQL = `WITH ins AS (
	INSERT INTO quicksilver_messages (id, ts, channels, message)
	VALUES (NULLIF($1::text, '')::uuid, $2, $3, $4::jsonb)
	RETURNING seq
)
SELECT pg_notify('` + NotifyChannel + `', seq::text) FROM ins`

	// pageSQL reads the trim watermark, the newest sequence and the next
	// matching rows in one statement, so all three share a snapshot. It always
	// returns at least one row; row columns are NULL when nothing matched.
	pageSQL = `WITH state AS (
	SELECT COALESCE((SELECT trimmed_seq FROM quicksilver_trim_state WHERE id), 0) AS trimmed_seq,
	       COALESCE((SELECT max(seq) FROM quicksilver_messages), 0) AS head_seq
)
SELECT s.trimmed_seq, s.head_seq, m.seq, m.id, m.ts, m.channels, m.message
FROM state s
LEFT JOIN LATERAL (
	SELECT seq, COALESCE(id::text, '') AS id, ts, channels, message
	FROM quicksilver_messages
	WHERE seq > $1 AND ts > $2 AND channels && $3
	ORDER BY seq
	LIMIT $4
) m ON true
ORDER BY m.seq`

	watermarkSQL = `SELECT trimmed_seq FROM quicksilver_trim_state WHERE id`

	trimSQL = `DELETE FROM quicksilver_messages WHERE ts < $1 RETURNING seq`

	advanceWatermarkSQL = `UPDATE quicksilver_trim_state
SET trimmed_seq = GREATEST(trimmed_seq, $1), trimmed_at = now()
WHERE id`
)

// querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a broadcast.Store backed by a PostgreSQL table.
type Store struct {
	pool   *pgxpool.Pool
	pages  pageReader
	owned  bool
	cfg    Config
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, cfg Config, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.Join(broadcast.ErrConfigInvalid, errors.New("pglog: pool is nil"))
	}
	s := &Store{
		pool:   pool,
		pages:  sqlPages{},
		cfg:    cfg.withDefaults(),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects with conn, applies migrations when cfg.AutoMigrate is set and
// returns a store that closes the pool on Close.
func Open(ctx context.Context, conn pg.Config, cfg Config, opts ...Option) (*Store, error) {
	pool, err := pg.Connect(ctx, conn)
	if err != nil {
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}
	s, err := New(pool, cfg, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if s.cfg.AutoMigrate {
		if err := Migrate(ctx, pool, s.cfg.MigrationsTable, s.logger); err != nil {
			pool.Close()
			return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
		}
	}
	s.owned = true
	return s, nil
}

// Append inserts msg and notifies listeners. When ctx carries a transaction
// (see pg.WithTx) the insert joins it and the notification fires on commit.
func (s *Store) Append(ctx context.Context, msg broadcast.Message) error {
	var id string
	if msg.ID != uuid.Nil {
		id = msg.ID.String()
	}
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("pglog: encode payload: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, appendSQL, id, msg.Timestamp, msg.Channels, payload)
	if pg.IsUndefinedTableError(err) {
		return errors.Join(broadcast.ErrConfigInvalid, errors.New("pglog: schema is missing, run Migrate"), err)
	}
	return err
}

// OpenCursor starts a cursor after the current trim watermark. In await mode
// the cursor holds a pooled connection that listens on NotifyChannel.
func (s *Store) OpenCursor(ctx context.Context, origin time.Time, channels []string) (broadcast.Cursor, error) {
	if channels == nil {
		channels = []string{}
	}
	c := &cursor{
		store:    s,
		origin:   origin,
		channels: append([]string(nil), channels...),
	}

	var q querier = s.pool
	if s.cfg.AwaitData {
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
		}
		if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			conn.Release()
			return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
		}
		c.conn = conn
		q = conn
	}

	wm, err := watermark(ctx, q)
	if err != nil {
		_ = c.Close(ctx)
		if pg.IsUndefinedTableError(err) {
			return nil, errors.Join(broadcast.ErrConfigInvalid, errors.New("pglog: schema is missing, run Migrate"), err)
		}
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}
	c.last = wm

	s.logger.DebugContext(ctx, "Table cursor opened",
		logger.Store("postgres"),
		logger.Origin(origin),
		logger.Channels(channels),
		logger.Key("start_seq", wm),
		logger.Key("await_data", s.cfg.AwaitData),
	)
	return c, nil
}

// Trim deletes messages older than before and advances the trim watermark,
// which kills cursors that had not read past the deleted rows.
func (s *Store) Trim(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	var deleted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, trimSQL, before)
		if err != nil {
			return err
		}
		seqs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return err
		}
		deleted = int64(len(seqs))
		if deleted == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, advanceWatermarkSQL, slices.Max(seqs))
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Message table trimmed",
		logger.Store("postgres"),
		logger.Count("deleted", int(deleted)),
		logger.Timestamp(before),
		logger.Elapsed(start),
	)
	return deleted, nil
}

// Close closes the pool when the store was created by Open.
func (s *Store) Close(context.Context) error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// Healthcheck pings the pool.
func (s *Store) Healthcheck(ctx context.Context) error {
	return pg.Healthcheck(s.pool)(ctx)
}

func (s *Store) db(ctx context.Context) querier {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

func watermark(ctx context.Context, q querier) (int64, error) {
	var seq int64
	err := q.QueryRow(ctx, watermarkSQL).Scan(&seq)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	return seq, err
}

// row is the selected shape of a stored message.
type row struct {
	Seq      int64     `db:"seq"`
	ID       string    `db:"id"`
	TS       time.Time `db:"ts"`
	Channels []string  `db:"channels"`
	Message  any       `db:"message"`
}

func (r row) message() broadcast.Message {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		id = uuid.Nil
	}
	return broadcast.Message{
		ID:        id,
		Payload:   r.Message,
		Timestamp: r.TS,
		Channels:  r.Channels,
	}
}

type cursor struct {
	store    *Store
	conn     *pgxpool.Conn // await mode only
	origin   time.Time
	channels []string

	last    int64
	buf     []broadcast.Message
	pending *broadcast.Message
	lost    bool
	closed  bool
}

func (c *cursor) HasNext(ctx context.Context) (bool, error) {
	if c.pending != nil {
		return true, nil
	}
	if c.closed || c.lost {
		return false, nil
	}
	if c.pop() {
		return true, nil
	}

	found, err := c.fetch(ctx)
	if err != nil || found || c.conn == nil {
		return found, err
	}

	deadline := time.Now().Add(c.store.cfg.MaxAwaitTime)
	for {
		waitCtx, cancel := context.WithDeadline(ctx, deadline)
		_, err := c.conn.Conn().WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
				return false, nil
			}
			c.markBroken()
			return false, err
		}

		found, err := c.fetch(ctx)
		if err != nil || found {
			return found, err
		}
	}
}

// fetch loads the next page of matching rows. Rows below the trim watermark
// are gone, so the cursor is dead when the watermark passed its position. A
// short page means every row up to the head was scanned, matching or not.
func (c *cursor) fetch(ctx context.Context) (bool, error) {
	p, err := c.store.pages.read(ctx, c.querier(), pageQuery{
		after:    c.last,
		origin:   c.origin,
		channels: c.channels,
		limit:    c.store.cfg.BatchSize,
	})
	if err != nil {
		c.markBroken()
		return false, err
	}
	if p.trimmed > c.last {
		c.lost = true
		return false, fmt.Errorf("%w: trimmed up to %d, read up to %d", ErrTrimmed, p.trimmed, c.last)
	}

	for _, r := range p.rows {
		c.last = r.Seq
		c.buf = append(c.buf, r.message())
	}
	if len(p.rows) < c.store.cfg.BatchSize && p.head > c.last {
		c.last = p.head
	}
	return c.pop(), nil
}

func (c *cursor) querier() querier {
	if c.conn != nil {
		return c.conn
	}
	return c.store.pool
}

// markBroken kills the cursor when its listening connection is gone.
func (c *cursor) markBroken() {
	if c.conn != nil && c.conn.Conn().IsClosed() {
		c.lost = true
	}
}

func (c *cursor) pop() bool {
	if len(c.buf) == 0 {
		return false
	}
	msg := c.buf[0]
	c.buf = c.buf[1:]
	c.pending = &msg
	return true
}

func (c *cursor) Next(context.Context) (broadcast.Message, error) {
	if c.pending == nil {
		return broadcast.Message{}, broadcast.ErrNoMessage
	}
	msg := *c.pending
	c.pending = nil
	return msg, nil
}

func (c *cursor) Dead() bool {
	return c.closed || c.lost
}

func (c *cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	c.buf = nil
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil
	defer conn.Release()
	if conn.Conn().IsClosed() {
		return nil
	}
	if _, err := conn.Exec(ctx, "UNLISTEN "+NotifyChannel); err != nil {
		// a listening connection must not go back to the pool
		_ = conn.Conn().Close(ctx)
		return err
	}
	return nil
}
