package broadcast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func fixedClock(sec int) broadcast.SessionOption {
	return broadcast.WithClock(func() time.Time { return at(sec) })
}

func newSession(t *testing.T, store broadcast.Store, opts ...broadcast.SessionOption) *broadcast.Session {
	t.Helper()
	s, err := broadcast.New(store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// sendAt appends payload with the given timestamp in seconds after epoch.
func sendAt(t *testing.T, store broadcast.Store, sec int, payload any, to ...string) {
	t.Helper()
	pub := newSession(t, store, fixedClock(sec))
	require.NoError(t, pub.Send(context.Background(), payload, to...))
}

func receiveAll(t *testing.T, s *broadcast.Session, origin time.Time) []broadcast.Message {
	t.Helper()
	var out []broadcast.Message
	for {
		msg, ok, err := s.Receive(context.Background(), origin)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestNew_NilStore(t *testing.T) {
	t.Parallel()

	s, err := broadcast.New(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, broadcast.ErrConfigInvalid)
}

func TestSession_FlushAllScenario(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sendAt(t, store, 100, "flushAll", "redis", "workers")

	a := newSession(t, store, broadcast.WithChannels("redis"))
	b := newSession(t, store, broadcast.WithChannels("cache"))
	c := newSession(t, store, broadcast.WithChannels("redis"))

	got := receiveAll(t, a, at(50))
	require.Len(t, got, 1)
	assert.Equal(t, "flushAll", got[0].Payload)
	assert.Equal(t, []string{"redis", "workers"}, got[0].Channels)
	assert.Equal(t, at(100), got[0].Timestamp)

	assert.Empty(t, receiveAll(t, b, at(50)), "channel filter excludes the message")
	assert.Empty(t, receiveAll(t, c, at(150)), "origin excludes the message")
}

func TestSession_FilteringCorrectness(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sendAt(t, store, 1, "a", "alpha")
	sendAt(t, store, 2, "b", "beta")
	sendAt(t, store, 3, "ab", "alpha", "beta")
	sendAt(t, store, 4, "g", "gamma")

	sub := newSession(t, store, broadcast.WithChannels("beta", "delta"))
	got := receiveAll(t, sub, time.Time{})

	require.Len(t, got, 2)
	for _, msg := range got {
		assert.True(t, broadcast.Intersects(msg.Channels, []string{"beta", "delta"}))
	}
	assert.Equal(t, "b", got[0].Payload)
	assert.Equal(t, "ab", got[1].Payload)
}

func TestSession_OrderingSinglePublisher(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sec := 0
	pub := newSession(t, store, broadcast.WithClock(func() time.Time {
		sec++
		return at(sec)
	}))

	for i := range 5 {
		require.NoError(t, pub.Send(context.Background(), i, "jobs", "other"))
	}

	sub := newSession(t, store, broadcast.WithChannels("jobs"))
	got := receiveAll(t, sub, time.Time{})

	require.Len(t, got, 5)
	for i, msg := range got {
		assert.Equal(t, i, msg.Payload)
		if i > 0 {
			assert.True(t, msg.Timestamp.After(got[i-1].Timestamp))
		}
	}
}

func TestSession_ResumptionIsExclusive(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	for sec := 1; sec <= 10; sec++ {
		sendAt(t, store, sec, sec, "ticks")
	}

	sub := newSession(t, store, broadcast.WithChannels("ticks"))
	got := receiveAll(t, sub, at(5))

	require.Len(t, got, 5)
	for _, msg := range got {
		assert.True(t, msg.Timestamp.After(at(5)))
	}
	assert.Equal(t, 6, got[0].Payload)
}

func TestSession_IdempotentSubscribe(t *testing.T) {
	t.Parallel()

	once := newSession(t, broadcast.NewMemoryStore())
	once.Subscribe("redis")

	twice := newSession(t, broadcast.NewMemoryStore())
	twice.Subscribe("redis")
	twice.Subscribe("redis", "redis")

	assert.Equal(t, once.Subscribed(), twice.Subscribed())
	assert.Equal(t, []string{"redis"}, twice.Subscribed())
}

func TestSession_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sub := newSession(t, store, broadcast.WithChannels("redis"))

	msg, ok, err := sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, msg.IsZero())
	assert.Equal(t, broadcast.CursorAlive, sub.CursorState())

	sendAt(t, store, 1, "later", "redis")

	msg, ok, err = sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "later", msg.Payload)
}

func TestSession_DeadCursorReportedOnce(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore(broadcast.WithMemoryCapacity(2))
	sub := newSession(t, store, broadcast.WithChannels("redis"))

	_, ok, err := sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err)
	require.False(t, ok)

	// Three appends into a two-slot log overwrite a record the cursor never saw.
	sendAt(t, store, 1, "one", "redis")
	sendAt(t, store, 2, "two", "redis")
	sendAt(t, store, 3, "three", "redis")

	_, ok, err = sub.Receive(context.Background(), time.Time{})
	require.ErrorIs(t, err, broadcast.ErrCursorDead)
	assert.False(t, ok)
	assert.Equal(t, broadcast.CursorUncreated, sub.CursorState())

	msg, ok, err := sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err, "the next receive opens a fresh cursor")
	require.True(t, ok)
	assert.Equal(t, "two", msg.Payload)
	assert.Equal(t, broadcast.CursorAlive, sub.CursorState())
}

func TestSession_DeadAfterStoreClose(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sub := newSession(t, store, broadcast.WithChannels("redis"))

	_, _, err := sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err)

	require.NoError(t, store.Close())

	_, _, err = sub.Receive(context.Background(), time.Time{})
	require.ErrorIs(t, err, broadcast.ErrCursorDead)

	_, _, err = sub.Receive(context.Background(), time.Time{})
	require.ErrorIs(t, err, broadcast.ErrStoreUnavailable)
	assert.Equal(t, broadcast.CursorUncreated, sub.CursorState())
}

func TestSession_OriginIgnoredUntilReset(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sub := newSession(t, store, broadcast.WithChannels("redis"))

	_, ok, err := sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err)
	require.False(t, ok)

	sendAt(t, store, 5, "five", "redis")

	msg, ok, err := sub.Receive(context.Background(), at(10))
	require.NoError(t, err)
	require.True(t, ok, "origin is ignored while the cursor exists")
	assert.Equal(t, "five", msg.Payload)

	sub.Reset(context.Background())
	assert.Equal(t, broadcast.CursorUncreated, sub.CursorState())

	assert.Empty(t, receiveAll(t, sub, at(10)), "new cursor honors the new origin")
}

func TestSession_SubscriptionSnapshot(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sub := newSession(t, store, broadcast.WithChannels("redis"))

	_, _, err := sub.Receive(context.Background(), time.Time{})
	require.NoError(t, err)

	sub.Subscribe("cache")
	sendAt(t, store, 1, "cached", "cache")

	assert.Empty(t, receiveAll(t, sub, time.Time{}), "open cursor keeps its filter")

	sub.Reset(context.Background())
	got := receiveAll(t, sub, time.Time{})
	require.Len(t, got, 1)
	assert.Equal(t, "cached", got[0].Payload)
}

func TestSession_Checkpoint(t *testing.T) {
	t.Parallel()

	store := broadcast.NewMemoryStore()
	sub := newSession(t, store, broadcast.WithChannels("redis"))
	assert.True(t, sub.Checkpoint().IsZero())

	sendAt(t, store, 7, "x", "redis")
	sendAt(t, store, 9, "y", "redis")
	receiveAll(t, sub, time.Time{})

	assert.Equal(t, at(9), sub.Checkpoint())
}

func TestSession_Send(t *testing.T) {
	t.Parallel()

	t.Run("no channels", func(t *testing.T) {
		t.Parallel()
		s := newSession(t, broadcast.NewMemoryStore())
		assert.ErrorIs(t, s.Send(context.Background(), "x"), broadcast.ErrNoChannels)
		assert.ErrorIs(t, s.Send(context.Background(), "x", "", ""), broadcast.ErrNoChannels)
	})

	t.Run("normalizes channels", func(t *testing.T) {
		t.Parallel()
		store := broadcast.NewMemoryStore()
		s := newSession(t, store)
		require.NoError(t, s.Send(context.Background(), "x", "a", "", "b", "a"))

		sub := newSession(t, store, broadcast.WithChannels("a"))
		got := receiveAll(t, sub, time.Time{})
		require.Len(t, got, 1)
		assert.Equal(t, []string{"a", "b"}, got[0].Channels)
		assert.NotZero(t, got[0].ID)
	})

	t.Run("append failure names channels", func(t *testing.T) {
		t.Parallel()
		storeErr := errors.New("write concern failed")
		s := newSession(t, &fakeStore{appendErr: storeErr})

		err := s.Send(context.Background(), "x", "redis", "workers")
		require.ErrorIs(t, err, broadcast.ErrAppendFailed)
		require.ErrorIs(t, err, storeErr)

		var appendErr *broadcast.AppendError
		require.ErrorAs(t, err, &appendErr)
		assert.Equal(t, []string{"redis", "workers"}, appendErr.Channels)
		assert.Contains(t, err.Error(), "'redis,workers'")
	})
}

func TestSession_StoreUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("open fails", func(t *testing.T) {
		t.Parallel()
		s := newSession(t, &fakeStore{openErr: errors.New("no reachable servers")})

		_, ok, err := s.Receive(context.Background(), time.Time{})
		assert.False(t, ok)
		assert.ErrorIs(t, err, broadcast.ErrStoreUnavailable)
		assert.Equal(t, broadcast.CursorUncreated, s.CursorState())
	})

	t.Run("poll fails on live cursor", func(t *testing.T) {
		t.Parallel()
		cur := &fakeCursor{hasNextErr: errors.New("connection reset")}
		s := newSession(t, &fakeStore{cursor: cur})

		_, _, err := s.Receive(context.Background(), time.Time{})
		assert.ErrorIs(t, err, broadcast.ErrStoreUnavailable)
		assert.Equal(t, broadcast.CursorAlive, s.CursorState(), "transport errors keep the cursor")
	})

	t.Run("poll fails and cursor dies", func(t *testing.T) {
		t.Parallel()
		cur := &fakeCursor{hasNextErr: errors.New("capped position lost"), dieOnError: true}
		s := newSession(t, &fakeStore{cursor: cur})

		_, _, err := s.Receive(context.Background(), time.Time{})
		assert.ErrorIs(t, err, broadcast.ErrCursorDead)
		assert.Equal(t, broadcast.CursorUncreated, s.CursorState())
		assert.True(t, cur.closed)
	})
}

func TestSession_AwaitData(t *testing.T) {
	t.Parallel()

	t.Run("wakes on append", func(t *testing.T) {
		t.Parallel()
		store := broadcast.NewMemoryStore(broadcast.WithMemoryAwaitData(5 * time.Second))
		sub := newSession(t, store, broadcast.WithChannels("redis"))
		pub := newSession(t, store, fixedClock(1))

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = pub.Send(context.Background(), "woke", "redis")
		}()

		start := time.Now()
		msg, ok, err := sub.Receive(context.Background(), time.Time{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "woke", msg.Payload)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("times out to empty", func(t *testing.T) {
		t.Parallel()
		store := broadcast.NewMemoryStore(broadcast.WithMemoryAwaitData(20 * time.Millisecond))
		sub := newSession(t, store, broadcast.WithChannels("redis"))

		_, ok, err := sub.Receive(context.Background(), time.Time{})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()
		store := broadcast.NewMemoryStore(broadcast.WithMemoryAwaitData(5 * time.Second))
		sub := newSession(t, store, broadcast.WithChannels("redis"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := sub.Receive(ctx, time.Time{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, broadcast.CursorAlive, sub.CursorState())
	})
}

func TestSession_Closed(t *testing.T) {
	t.Parallel()

	s, err := broadcast.New(broadcast.NewMemoryStore(), broadcast.WithChannels("redis"))
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	assert.ErrorIs(t, s.Send(context.Background(), "x", "redis"), broadcast.ErrSessionClosed)
	_, _, err = s.Receive(context.Background(), time.Time{})
	assert.ErrorIs(t, err, broadcast.ErrSessionClosed)
}

func TestSession_Observer(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	store := broadcast.NewMemoryStore(broadcast.WithMemoryCapacity(1))
	s := newSession(t, store, broadcast.WithObserver(obs), broadcast.WithChannels("redis"))

	require.NoError(t, s.Send(context.Background(), "x", "redis"))
	receiveAll(t, s, time.Time{})

	require.NoError(t, s.Send(context.Background(), "y", "redis"))
	require.NoError(t, s.Send(context.Background(), "z", "redis"))
	_, _, err := s.Receive(context.Background(), time.Time{})
	require.ErrorIs(t, err, broadcast.ErrCursorDead)

	failing := newSession(t, &fakeStore{appendErr: errors.New("nope")}, broadcast.WithObserver(obs))
	require.Error(t, failing.Send(context.Background(), "x", "redis"))

	assert.Equal(t, 3, obs.sent)
	assert.Equal(t, 1, obs.received)
	assert.Equal(t, 1, obs.empty)
	assert.Equal(t, 1, obs.dead)
	assert.Equal(t, 1, obs.failed)
}

type countingObserver struct {
	sent, failed, received, empty, dead int
}

func (o *countingObserver) MessageSent(context.Context, broadcast.Message)     { o.sent++ }
func (o *countingObserver) SendFailed(context.Context, []string, error)        { o.failed++ }
func (o *countingObserver) MessageReceived(context.Context, broadcast.Message) { o.received++ }
func (o *countingObserver) ReceiveEmpty(context.Context)                       { o.empty++ }
func (o *countingObserver) CursorDead(context.Context)                         { o.dead++ }

type fakeStore struct {
	appendErr error
	openErr   error
	cursor    *fakeCursor
}

func (s *fakeStore) Append(context.Context, broadcast.Message) error { return s.appendErr }

func (s *fakeStore) OpenCursor(context.Context, time.Time, []string) (broadcast.Cursor, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.cursor == nil {
		s.cursor = &fakeCursor{}
	}
	return s.cursor, nil
}

type fakeCursor struct {
	hasNextErr error
	dieOnError bool
	dead       bool
	closed     bool
}

func (c *fakeCursor) HasNext(context.Context) (bool, error) {
	if c.hasNextErr != nil {
		if c.dieOnError {
			c.dead = true
		}
		return false, c.hasNextErr
	}
	return false, nil
}

func (c *fakeCursor) Next(context.Context) (broadcast.Message, error) {
	return broadcast.Message{}, broadcast.ErrNoMessage
}

func (c *fakeCursor) Dead() bool { return c.dead }

func (c *fakeCursor) Close(context.Context) error {
	c.closed = true
	return nil
}
