package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quicksilver/core/logger"
)

// Session is one logical reader and writer on a shared log.
// It holds at most one cursor and is not safe for concurrent use;
// run one Session per goroutine.
type Session struct {
	store    Store
	subs     *Subscriptions
	cursors  *CursorManager
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	checkpoint time.Time
	closed     bool
}

// New creates a session on store. It returns ErrConfigInvalid if store is nil.
func New(store Store, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, ErrConfigInvalid
	}

	s := &Session{
		store:    store,
		subs:     NewSubscriptions(),
		logger:   logger.Discard(),
		observer: noopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cursors = NewCursorManager(store, s.subs, s.logger)

	return s, nil
}

// Send appends payload to the log tagged with the given channels.
func (s *Session) Send(ctx context.Context, payload any, to ...string) error {
	if s.closed {
		return ErrSessionClosed
	}
	channels := NormalizeChannels(to)
	if len(channels) == 0 {
		return ErrNoChannels
	}

	msg := Message{
		ID:        uuid.New(),
		Payload:   payload,
		Timestamp: s.now(),
		Channels:  channels,
	}

	if err := s.store.Append(ctx, msg); err != nil {
		s.observer.SendFailed(ctx, channels, err)
		s.logger.ErrorContext(ctx, "Failed to append message",
			logger.Error(err),
			logger.Channels(channels),
		)
		return &AppendError{Channels: channels, Err: err}
	}

	s.observer.MessageSent(ctx, msg)
	s.logger.DebugContext(ctx, "Message sent",
		logger.MessageID(msg.ID),
		logger.Channels(channels),
		logger.Timestamp(msg.Timestamp),
	)
	return nil
}

// Subscribe adds channels to the subscription set. An already open cursor keeps
// its original filter until Reset is called.
func (s *Session) Subscribe(channels ...string) {
	s.subs.Subscribe(channels...)
}

// Subscribed returns the current subscription set.
func (s *Session) Subscribed() []string {
	return s.subs.List()
}

// Receive returns the next message after origin on the subscribed channels.
//
// The boolean result is false when nothing is available yet; that is not an
// error and callers should simply try again. ErrCursorDead means the cursor was
// discarded and the next call opens a fresh one from the origin it is given.
// origin only takes effect when a new cursor is opened.
func (s *Session) Receive(ctx context.Context, origin time.Time) (Message, bool, error) {
	if s.closed {
		return Message{}, false, ErrSessionClosed
	}

	cur, err := s.cursors.GetOrCreate(ctx, origin)
	if err != nil {
		return Message{}, false, err
	}

	if s.cursors.IsDead() {
		return Message{}, false, s.dead(ctx, nil)
	}

	ok, err := cur.HasNext(ctx)
	if err != nil {
		if s.cursors.IsDead() {
			return Message{}, false, s.dead(ctx, err)
		}
		return Message{}, false, wrapUnavailable(err)
	}
	if !ok {
		s.observer.ReceiveEmpty(ctx)
		return Message{}, false, nil
	}

	msg, err := cur.Next(ctx)
	if err != nil {
		if s.cursors.IsDead() {
			return Message{}, false, s.dead(ctx, err)
		}
		return Message{}, false, wrapUnavailable(err)
	}

	if msg.Timestamp.After(s.checkpoint) {
		s.checkpoint = msg.Timestamp
	}
	s.observer.MessageReceived(ctx, msg)
	return msg, true, nil
}

// Reset discards the current cursor so the next Receive opens a new one with
// the current subscriptions and the origin it is given.
func (s *Session) Reset(ctx context.Context) {
	s.cursors.Clear(ctx)
}

// Checkpoint returns the timestamp of the newest message delivered by Receive,
// or the zero time if none was delivered. Resuming from it replays nothing that
// was already seen, except messages sharing that exact timestamp.
func (s *Session) Checkpoint() time.Time {
	return s.checkpoint
}

// CursorState returns the state of the session's cursor.
func (s *Session) CursorState() CursorState {
	return s.cursors.State()
}

// Close releases the cursor. Further Send and Receive calls fail with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cursors.Clear(ctx)
	return nil
}

func (s *Session) dead(ctx context.Context, cause error) error {
	s.cursors.Clear(ctx)
	s.observer.CursorDead(ctx)
	s.logger.WarnContext(ctx, "Cursor is dead", logger.Error(cause))
	if cause != nil {
		return errors.Join(ErrCursorDead, cause)
	}
	return ErrCursorDead
}

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrStoreUnavailable, err)
}
