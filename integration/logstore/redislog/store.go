package redislog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/quicksilver/core/logger"
	dbredis "github.com/dmitrymomot/quicksilver/integration/database/redis"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// ErrTrimmed is returned by HasNext when the stream was trimmed past entries
// the cursor had not read yet.
var ErrTrimmed = errors.New("redislog: stream trimmed past cursor position")

// Store is a broadcast.Store backed by a capped Redis stream.
type Store struct {
	client redis.UniversalClient
	stream streamReader
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

// New wraps an existing client. Zero fields of cfg take their defaults.
func New(client redis.UniversalClient, cfg Config, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.Join(broadcast.ErrConfigInvalid, errors.New("redislog: client is nil"))
	}
	s := &Store{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stream = redisStream{client: client, name: s.cfg.Stream}
	return s, nil
}

// Open connects with conn and returns a store that closes the client on Close.
func Open(ctx context.Context, conn dbredis.Config, cfg Config, opts ...Option) (*Store, error) {
	client, err := dbredis.Connect(ctx, conn)
	if err != nil {
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}
	s, err := New(client, cfg, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Append adds msg to the stream, trimming it to roughly MaxLen entries.
func (s *Store) Append(ctx context.Context, msg broadcast.Message) error {
	values, err := encodeEntry(msg)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		MaxLen: s.cfg.MaxLen,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Err()
}

// OpenCursor positions a cursor on the stream. When origin is older than the
// newest entry the cursor starts at the oldest retained entry and filters by
// timestamp; entries the stream had already trimmed are not reported as lost.
func (s *Store) OpenCursor(ctx context.Context, origin time.Time, channels []string) (broadcast.Cursor, error) {
	st, err := s.stream.state(ctx)
	if err != nil {
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}

	c := &cursor{
		store:    s,
		origin:   origin,
		channels: append([]string(nil), channels...),
		pos:      st.trimmed(),
	}
	if !st.lastID.after(originID(origin, s.cfg.ClockSkew)) {
		c.last = st.lastID
		c.pos = st.entriesAdded
	}

	s.logger.DebugContext(ctx, "Stream cursor opened",
		logger.Store("redis"),
		logger.Origin(origin),
		logger.Channels(channels),
		logger.Key("start_id", c.last.String()),
	)
	return c, nil
}

// Close closes the client when the store was created by Open.
func (s *Store) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Healthcheck pings the underlying client.
func (s *Store) Healthcheck(ctx context.Context) error {
	return dbredis.Healthcheck(s.client)(ctx)
}

type cursor struct {
	store    *Store
	origin   time.Time
	channels []string

	last    streamID
	pos     int64 // entries added up to and including last
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
	if err != nil || found || !c.store.cfg.AwaitData {
		return found, err
	}

	ready, err := c.store.stream.wait(ctx, c.last, c.store.cfg.MaxAwaitTime)
	if err != nil || !ready {
		return false, err
	}
	return c.fetch(ctx)
}

// fetch reads batches together with the stream counters until one yields a
// match or the stream is exhausted. Entries are only trimmed from the head, so
// the stream lost unread entries when more were trimmed than the cursor has
// passed.
func (c *cursor) fetch(ctx context.Context) (bool, error) {
	for {
		st, entries, err := c.store.stream.snapshot(ctx, c.last, c.store.cfg.BatchSize)
		if err != nil {
			return false, err
		}
		if st.trimmed() > c.pos {
			c.lost = true
			return false, fmt.Errorf("%w: %d entries trimmed, %d passed", ErrTrimmed, st.trimmed(), c.pos)
		}

		for _, entry := range entries {
			c.scanned(ctx, entry)
		}
		if c.pop() {
			return true, nil
		}
		if int64(len(entries)) < c.store.cfg.BatchSize {
			return false, nil
		}
	}
}

// scanned advances the read position past entry and buffers it on a match.
// Entries that cannot be decoded are logged and skipped.
func (c *cursor) scanned(ctx context.Context, entry redis.XMessage) {
	if id, err := parseStreamID(entry.ID); err == nil {
		c.last = id
	}
	c.pos++
	msg, err := decodeEntry(entry.Values)
	if err != nil {
		c.store.logger.WarnContext(ctx, "Skipping malformed stream entry",
			logger.Store("redis"),
			logger.ID("entry_id", entry.ID),
			logger.Error(err),
		)
		return
	}
	if msg.Matches(c.origin, c.channels) {
		c.buf = append(c.buf, msg)
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

func (c *cursor) Close(context.Context) error {
	c.closed = true
	c.pending = nil
	c.buf = nil
	return nil
}
