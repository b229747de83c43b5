package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

func TestMemoryStore_Capacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := broadcast.NewMemoryStore(broadcast.WithMemoryCapacity(3))

	for sec := 1; sec <= 5; sec++ {
		require.NoError(t, store.Append(ctx, broadcast.Message{
			Payload:   sec,
			Timestamp: at(sec),
			Channels:  []string{"c"},
		}))
	}
	assert.Equal(t, 3, store.Len())

	cur, err := store.OpenCursor(ctx, time.Time{}, []string{"c"})
	require.NoError(t, err)

	var got []any
	for {
		ok, err := cur.HasNext(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		msg, err := cur.Next(ctx)
		require.NoError(t, err)
		got = append(got, msg.Payload)
	}
	assert.Equal(t, []any{3, 4, 5}, got)
	assert.False(t, cur.Dead())
}

func TestMemoryStore_OverwrittenCursorFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := broadcast.NewMemoryStore(
		broadcast.WithMemoryCapacity(2),
		broadcast.WithMemoryAwaitData(time.Second),
	)
	cur, err := store.OpenCursor(ctx, time.Time{}, []string{"c"})
	require.NoError(t, err)

	for sec := 1; sec <= 3; sec++ {
		require.NoError(t, store.Append(ctx, broadcast.Message{Payload: sec, Timestamp: at(sec), Channels: []string{"c"}}))
	}

	start := time.Now()
	ok, err := cur.HasNext(ctx)
	require.ErrorIs(t, err, broadcast.ErrOverwritten)
	assert.False(t, ok)
	assert.True(t, cur.Dead())
	assert.Less(t, time.Since(start), 500*time.Millisecond, "a lost cursor does not wait for data")
}

func TestMemoryStore_NextWithoutHasNext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := broadcast.NewMemoryStore()
	cur, err := store.OpenCursor(ctx, time.Time{}, []string{"c"})
	require.NoError(t, err)

	_, err = cur.Next(ctx)
	assert.ErrorIs(t, err, broadcast.ErrNoMessage)
}

func TestMemoryStore_AppendValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := broadcast.NewMemoryStore()

	assert.ErrorIs(t, store.Append(ctx, broadcast.Message{Timestamp: at(1)}), broadcast.ErrNoChannels)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Append(ctx, broadcast.Message{Channels: []string{"c"}}), broadcast.ErrStoreClosed)

	_, err := store.OpenCursor(ctx, time.Time{}, []string{"c"})
	assert.ErrorIs(t, err, broadcast.ErrStoreUnavailable)
}

func TestMemoryStore_CursorClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := broadcast.NewMemoryStore()
	cur, err := store.OpenCursor(ctx, time.Time{}, []string{"c"})
	require.NoError(t, err)

	require.NoError(t, cur.Close(ctx))
	require.NoError(t, cur.Close(ctx))
	assert.True(t, cur.Dead())

	ok, err := cur.HasNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
