package prommetrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

const namespace = "quicksilver"

// Observer is a broadcast.Observer that records session activity as
// Prometheus metrics labelled by channel and store.
type Observer struct {
	sent       *prometheus.CounterVec
	sendFailed *prometheus.CounterVec
	received   *prometheus.CounterVec
	empty      *prometheus.CounterVec
	dead       *prometheus.CounterVec
	store      string
}

var _ broadcast.Observer = (*Observer)(nil)

// New creates the collectors and registers them on reg. store labels every
// series, so sessions on different backends can share a registry.
func New(reg prometheus.Registerer, store string) (*Observer, error) {
	if reg == nil {
		return nil, errors.Join(broadcast.ErrConfigInvalid, errors.New("prommetrics: registerer is nil"))
	}

	o := &Observer{
		store: store,
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages appended to the log, per target channel.",
		}, []string{"store", "channel"}),
		sendFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Appends rejected by the store.",
		}, []string{"store"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages delivered to receivers, per message channel.",
		}, []string{"store", "channel"}),
		empty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receive_empty_total",
			Help:      "Receive calls that found no message.",
		}, []string{"store"}),
		dead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cursor_dead_total",
			Help:      "Cursors discarded because they could not make progress.",
		}, []string{"store"}),
	}

	for _, c := range []prometheus.Collector{o.sent, o.sendFailed, o.received, o.empty, o.dead} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, store string) *Observer {
	o, err := New(reg, store)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Observer) MessageSent(_ context.Context, msg broadcast.Message) {
	for _, ch := range msg.Channels {
		o.sent.WithLabelValues(o.store, ch).Inc()
	}
}

func (o *Observer) SendFailed(context.Context, []string, error) {
	o.sendFailed.WithLabelValues(o.store).Inc()
}

func (o *Observer) MessageReceived(_ context.Context, msg broadcast.Message) {
	for _, ch := range msg.Channels {
		o.received.WithLabelValues(o.store, ch).Inc()
	}
}

func (o *Observer) ReceiveEmpty(context.Context) {
	o.empty.WithLabelValues(o.store).Inc()
}

func (o *Observer) CursorDead(context.Context) {
	o.dead.WithLabelValues(o.store).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
