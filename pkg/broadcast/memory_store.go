package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/quicksilver/core/logger"
)

var (
	// ErrStoreClosed is returned by MemoryStore operations after Close.
	ErrStoreClosed = errors.New("broadcast: memory store is closed")
	// ErrOverwritten is returned by a MemoryStore cursor whose unread records
	// were overwritten.
	ErrOverwritten = errors.New("broadcast: memory store overwrote unread records")
)

const (
	defaultMemoryCapacity     = 1000
	defaultMemoryMaxAwaitTime = time.Second
)

// MemoryStore is an in-process capped log for tests and local development.
// Once capacity is reached every append overwrites the oldest record, and
// cursors that had not yet scanned an overwritten record become dead.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []Message
	capacity uint64
	first    uint64 // sequence of the oldest retained record
	next     uint64 // sequence assigned to the next append
	notify   chan struct{}
	closed   bool

	awaitData    bool
	maxAwaitTime time.Duration
	logger       *slog.Logger
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryCapacity sets how many records are retained.
func WithMemoryCapacity(n int) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if n > 0 {
			ms.capacity = uint64(n)
		}
	}
}

// WithMemoryAwaitData makes HasNext wait up to maxAwait for a new record.
func WithMemoryAwaitData(maxAwait time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.awaitData = true
		if maxAwait > 0 {
			ms.maxAwaitTime = maxAwait
		}
	}
}

// WithMemoryStoreLogger sets the logger for internal operations.
func WithMemoryStoreLogger(log *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if log != nil {
			ms.logger = log
		}
	}
}

// NewMemoryStore creates an empty in-memory log.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		capacity:     defaultMemoryCapacity,
		maxAwaitTime: defaultMemoryMaxAwaitTime,
		notify:       make(chan struct{}),
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(ms)
	}
	ms.records = make([]Message, ms.capacity)
	return ms
}

// Append stores a copy of msg, evicting the oldest record when full.
func (ms *MemoryStore) Append(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.Channels) == 0 {
		return ErrNoChannels
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}

	msg.Channels = slices.Clone(msg.Channels)
	ms.records[ms.next%ms.capacity] = msg
	ms.next++
	if ms.next-ms.first > ms.capacity {
		ms.first = ms.next - ms.capacity
	}

	close(ms.notify)
	ms.notify = make(chan struct{})
	return nil
}

// OpenCursor returns a cursor starting at the oldest retained record.
func (ms *MemoryStore) OpenCursor(ctx context.Context, origin time.Time, channels []string) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, errors.Join(ErrStoreUnavailable, ErrStoreClosed)
	}

	return &memoryCursor{
		store:    ms,
		origin:   origin,
		channels: slices.Clone(channels),
		pos:      ms.first,
	}, nil
}

// Len returns the number of retained records.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return int(ms.next - ms.first)
}

// Close marks the store closed; every cursor becomes dead.
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil
	}
	ms.closed = true
	close(ms.notify)
	ms.notify = make(chan struct{})
	ms.logger.Debug("Memory store closed", logger.Count("records", int(ms.next-ms.first)))
	return nil
}

type memoryCursor struct {
	store    *MemoryStore
	origin   time.Time
	channels []string

	pos     uint64
	pending *Message
	lost    bool
	closed  bool
}

func (c *memoryCursor) HasNext(ctx context.Context) (bool, error) {
	if c.pending != nil {
		return true, nil
	}
	if c.closed || c.lost {
		return false, nil
	}

	found, wait := c.scan()
	if c.lost {
		return false, ErrOverwritten
	}
	if found || wait == nil || !c.store.awaitData {
		return found, nil
	}

	timer := time.NewTimer(c.store.maxAwaitTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, nil
	case <-wait:
	}

	found, _ = c.scan()
	if c.lost {
		return false, ErrOverwritten
	}
	return found, nil
}

// scan advances over retained records looking for a match. When nothing
// matches it returns the channel closed by the next append.
func (c *memoryCursor) scan() (bool, <-chan struct{}) {
	ms := c.store
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return false, nil
	}
	if c.pos < ms.first {
		c.lost = true
		return false, nil
	}

	for c.pos < ms.next {
		msg := ms.records[c.pos%ms.capacity]
		c.pos++
		if msg.Matches(c.origin, c.channels) {
			msg.Channels = slices.Clone(msg.Channels)
			c.pending = &msg
			return true, nil
		}
	}
	return false, ms.notify
}

func (c *memoryCursor) Next(context.Context) (Message, error) {
	if c.pending == nil {
		return Message{}, ErrNoMessage
	}
	msg := *c.pending
	c.pending = nil
	return msg, nil
}

func (c *memoryCursor) Dead() bool {
	if c.closed || c.lost {
		return true
	}
	ms := c.store
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return true
	}
	if c.pending == nil && c.pos < ms.first {
		c.lost = true
	}
	return c.lost
}

func (c *memoryCursor) Close(context.Context) error {
	c.closed = true
	c.pending = nil
	return nil
}
