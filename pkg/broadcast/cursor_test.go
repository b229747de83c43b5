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

type recordingStore struct {
	fakeStore
	opened   int
	origins  []time.Time
	channels [][]string
}

func (s *recordingStore) OpenCursor(ctx context.Context, origin time.Time, channels []string) (broadcast.Cursor, error) {
	s.opened++
	s.origins = append(s.origins, origin)
	s.channels = append(s.channels, channels)
	s.cursor = nil
	return s.fakeStore.OpenCursor(ctx, origin, channels)
}

func TestCursorManager_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &recordingStore{}
	subs := broadcast.NewSubscriptions("redis")
	m := broadcast.NewCursorManager(store, subs, nil)

	assert.Equal(t, broadcast.CursorUncreated, m.State())
	assert.False(t, m.IsDead())

	cur, err := m.GetOrCreate(ctx, at(10))
	require.NoError(t, err)
	assert.Equal(t, broadcast.CursorAlive, m.State())

	again, err := m.GetOrCreate(ctx, at(99))
	require.NoError(t, err)
	assert.Same(t, cur, again)
	assert.Equal(t, 1, store.opened)
	assert.Equal(t, []time.Time{at(10)}, store.origins)

	cur.(*fakeCursor).dead = true
	assert.True(t, m.IsDead())
	assert.Equal(t, broadcast.CursorDead, m.State())

	dead, err := m.GetOrCreate(ctx, at(20))
	require.NoError(t, err)
	assert.Same(t, cur, dead, "a dead cursor must be cleared before recreation")

	m.Clear(ctx)
	m.Clear(ctx)
	assert.Equal(t, broadcast.CursorUncreated, m.State())
	assert.True(t, cur.(*fakeCursor).closed)

	_, err = m.GetOrCreate(ctx, at(20))
	require.NoError(t, err)
	assert.Equal(t, 2, store.opened)
	assert.Equal(t, at(20), store.origins[1])
}

func TestCursorManager_FilterSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &recordingStore{}
	subs := broadcast.NewSubscriptions("redis")
	m := broadcast.NewCursorManager(store, subs, nil)

	_, err := m.GetOrCreate(ctx, time.Time{})
	require.NoError(t, err)
	subs.Subscribe("cache")
	_, err = m.GetOrCreate(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"redis"}}, store.channels)

	m.Clear(ctx)
	_, err = m.GetOrCreate(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "redis"}, store.channels[1])
}

func TestCursorManager_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m := broadcast.NewCursorManager(nil, nil, nil)
	_, err := m.GetOrCreate(ctx, time.Time{})
	assert.ErrorIs(t, err, broadcast.ErrConfigInvalid)

	cause := errors.New("dial tcp: connection refused")
	m = broadcast.NewCursorManager(&fakeStore{openErr: cause}, nil, nil)
	_, err = m.GetOrCreate(ctx, time.Time{})
	assert.ErrorIs(t, err, broadcast.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, broadcast.CursorUncreated, m.State())

	m = broadcast.NewCursorManager(&fakeStore{openErr: broadcast.ErrConfigInvalid}, nil, nil)
	_, err = m.GetOrCreate(ctx, time.Time{})
	assert.ErrorIs(t, err, broadcast.ErrConfigInvalid)
	assert.NotErrorIs(t, err, broadcast.ErrStoreUnavailable)
}

func TestCursorState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "uncreated", broadcast.CursorUncreated.String())
	assert.Equal(t, "alive", broadcast.CursorAlive.String())
	assert.Equal(t, "dead", broadcast.CursorDead.String())
}
