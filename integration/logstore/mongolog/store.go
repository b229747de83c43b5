package mongolog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/quicksilver/core/logger"
	dbmongo "github.com/dmitrymomot/quicksilver/integration/database/mongo"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// Server error codes that mean a tailable cursor lost its position.
const (
	codeCursorNotFound     = 43
	codeNamespaceExists    = 48
	codeCappedPositionLost = 136
	codeQueryPlanKilled    = 175
	codeCursorKilled       = 237
)

// Store is a broadcast.Store backed by a capped collection read through
// tailable cursors.
type Store struct {
	coll         *mongo.Collection
	client       *mongo.Client // set only when the store owns the connection
	awaitData    bool
	maxAwaitTime time.Duration
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithAwaitData makes cursors block on the server for up to maxAwait when no
// document is available.
func WithAwaitData(maxAwait time.Duration) Option {
	return func(s *Store) {
		s.awaitData = true
		if maxAwait > 0 {
			s.maxAwaitTime = maxAwait
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// New wraps an existing capped collection.
func New(coll *mongo.Collection, opts ...Option) (*Store, error) {
	if coll == nil {
		return nil, errors.Join(broadcast.ErrConfigInvalid, errors.New("mongolog: collection is nil"))
	}
	s := &Store{
		coll:         coll,
		maxAwaitTime: time.Second,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects using cfg, creates the capped collection if needed and
// returns a store that disconnects the client on Close.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := dbmongo.New(ctx, cfg.ClientConfig())
	if err != nil {
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}

	db := client.Database(cfg.Database)
	if err := EnsureCollection(ctx, db, cfg); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}

	if cfg.AwaitData {
		opts = append([]Option{WithAwaitData(cfg.MaxAwaitTime)}, opts...)
	}
	s, err := New(db.Collection(cfg.Collection), opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.client = client
	return s, nil
}

// EnsureCollection creates cfg.Collection as a capped collection unless it exists.
func EnsureCollection(ctx context.Context, db *mongo.Database, cfg Config) error {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: cfg.Collection}})
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return nil
	}

	create := options.CreateCollection().
		SetCapped(true).
		SetSizeInBytes(cfg.CappedSizeBytes)
	if cfg.CappedMaxDocuments > 0 {
		create.SetMaxDocuments(cfg.CappedMaxDocuments)
	}

	err = db.CreateCollection(ctx, cfg.Collection, create)
	if hasCode(err, codeNamespaceExists) {
		return nil
	}
	return err
}

// Append inserts msg into the collection.
func (s *Store) Append(ctx context.Context, msg broadcast.Message) error {
	_, err := s.coll.InsertOne(ctx, newDocument(msg))
	return err
}

// OpenCursor runs a tailable find for documents after origin on any of channels.
func (s *Store) OpenCursor(ctx context.Context, origin time.Time, channels []string) (broadcast.Cursor, error) {
	find := options.Find()
	if s.awaitData {
		find.SetCursorType(options.TailableAwait).SetMaxAwaitTime(s.maxAwaitTime)
	} else {
		find.SetCursorType(options.Tailable)
	}

	cur, err := s.coll.Find(ctx, cursorFilter(origin, channels), find)
	if err != nil {
		return nil, errors.Join(broadcast.ErrStoreUnavailable, err)
	}

	s.logger.DebugContext(ctx, "Tailable cursor opened",
		logger.Store("mongo"),
		logger.Origin(origin),
		logger.Channels(channels),
		logger.Key("await_data", s.awaitData),
	)
	return &cursor{cur: cur}, nil
}

// Close disconnects the client when the store was created by Open.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Healthcheck pings the server behind the collection.
func (s *Store) Healthcheck(ctx context.Context) error {
	return dbmongo.Healthcheck(s.coll.Database().Client())(ctx)
}

func cursorFilter(origin time.Time, channels []string) bson.D {
	if channels == nil {
		channels = []string{}
	}
	return bson.D{
		{Key: "timestamp", Value: bson.D{{Key: "$gt", Value: origin}}},
		{Key: "channels", Value: bson.D{{Key: "$in", Value: channels}}},
	}
}

// document is the stored shape of a broadcast.Message.
type document struct {
	ObjectID  bson.ObjectID `bson:"_id,omitempty"`
	ID        string        `bson:"id,omitempty"`
	Message   any           `bson:"message"`
	Timestamp time.Time     `bson:"timestamp"`
	Channels  []string      `bson:"channels"`
}

func newDocument(msg broadcast.Message) document {
	doc := document{
		Message:   msg.Payload,
		Timestamp: msg.Timestamp,
		Channels:  msg.Channels,
	}
	if msg.ID != uuid.Nil {
		doc.ID = msg.ID.String()
	}
	return doc
}

func (d document) message() broadcast.Message {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		id = uuid.Nil
	}
	return broadcast.Message{
		ID:        id,
		Payload:   d.Message,
		Timestamp: d.Timestamp,
		Channels:  d.Channels,
	}
}

type cursor struct {
	cur     *mongo.Cursor
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

	if c.cur.TryNext(ctx) {
		var doc document
		if err := c.cur.Decode(&doc); err != nil {
			return false, err
		}
		msg := doc.message()
		c.pending = &msg
		return true, nil
	}

	if err := c.cur.Err(); err != nil {
		if cursorLost(err) {
			c.lost = true
		}
		return false, err
	}
	return false, nil
}

func (c *cursor) Next(context.Context) (broadcast.Message, error) {
	if c.pending == nil {
		return broadcast.Message{}, broadcast.ErrNoMessage
	}
	msg := *c.pending
	c.pending = nil
	return msg, nil
}

// Dead reports a closed or lost cursor, or one the server has exhausted:
// a zero cursor ID with nothing left in the local batch.
func (c *cursor) Dead() bool {
	if c.closed || c.lost {
		return true
	}
	return c.pending == nil && c.cur.ID() == 0 && c.cur.RemainingBatchLength() == 0
}

func (c *cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	return c.cur.Close(ctx)
}

func cursorLost(err error) bool {
	return hasCode(err, codeCappedPositionLost) ||
		hasCode(err, codeCursorNotFound) ||
		hasCode(err, codeCursorKilled) ||
		hasCode(err, codeQueryPlanKilled)
}

func hasCode(err error, code int) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(code)
}
