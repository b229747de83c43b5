package prommetrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quicksilver/integration/metrics/prommetrics"
	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

func TestObserver_Counts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs, err := prommetrics.New(reg, "memory")
	require.NoError(t, err)

	ctx := context.Background()
	msg := broadcast.Message{Channels: []string{"redis", "workers"}, Timestamp: time.Now()}
	obs.MessageSent(ctx, msg)
	obs.MessageSent(ctx, broadcast.Message{Channels: []string{"redis"}})
	obs.SendFailed(ctx, []string{"redis"}, errors.New("boom"))
	obs.MessageReceived(ctx, msg)
	obs.ReceiveEmpty(ctx)
	obs.ReceiveEmpty(ctx)
	obs.CursorDead(ctx)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			counts[f.GetName()] += m.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 3.0, counts["quicksilver_messages_sent_total"])
	assert.Equal(t, 1.0, counts["quicksilver_send_failures_total"])
	assert.Equal(t, 2.0, counts["quicksilver_messages_received_total"])
	assert.Equal(t, 2.0, counts["quicksilver_receive_empty_total"])
	assert.Equal(t, 1.0, counts["quicksilver_cursor_dead_total"])
}

func TestObserver_WiredIntoSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs := prommetrics.MustNew(reg, "memory")
	store := broadcast.NewMemoryStore()
	origin := time.Now().Add(-time.Minute)

	pub, err := broadcast.New(store, broadcast.WithObserver(obs))
	require.NoError(t, err)
	sub, err := broadcast.New(store, broadcast.WithObserver(obs), broadcast.WithChannels("redis"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pub.Send(ctx, "flushAll", "redis"))

	_, ok, err := sub.Receive(ctx, origin)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = sub.Receive(ctx, origin)
	require.NoError(t, err)
	require.False(t, ok)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "quicksilver_messages_sent_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "quicksilver_messages_received_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "quicksilver_receive_empty_total"))
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := prommetrics.New(nil, "memory")
	require.ErrorIs(t, err, broadcast.ErrConfigInvalid)

	reg := prometheus.NewRegistry()
	_, err = prommetrics.New(reg, "memory")
	require.NoError(t, err)
	_, err = prommetrics.New(reg, "memory")
	require.Error(t, err, "duplicate registration must fail")

	assert.Panics(t, func() { prommetrics.MustNew(reg, "memory") })
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs := prommetrics.MustNew(reg, "memory")
	obs.CursorDead(context.Background())

	rec := httptest.NewRecorder()
	prommetrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `quicksilver_cursor_dead_total{store="memory"} 1`)
}
