package broadcast

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Message is the record appended to and delivered from the shared log.
// Payload is opaque to this package; Timestamp is the publisher's clock at send
// time and serves both as the ordering key and the resumption unit.
type Message struct {
	ID        uuid.UUID `json:"id" bson:"id" msgpack:"id"`
	Payload   any       `json:"message" bson:"message" msgpack:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp" msgpack:"timestamp"`
	Channels  []string  `json:"channels" bson:"channels" msgpack:"channels"`
}

// IsZero reports whether m is the empty message.
func (m Message) IsZero() bool {
	return m.ID == uuid.Nil && m.Payload == nil && m.Timestamp.IsZero() && len(m.Channels) == 0
}

// Matches reports whether m is visible through a cursor with the given origin
// and channel filter: its timestamp is strictly after origin and at least one
// of its channels is in the filter.
func (m Message) Matches(origin time.Time, channels []string) bool {
	if !m.Timestamp.After(origin) {
		return false
	}
	return Intersects(m.Channels, channels)
}

// Intersects reports whether a and b share at least one channel name.
func Intersects(a, b []string) bool {
	for _, ch := range a {
		if slices.Contains(b, ch) {
			return true
		}
	}
	return false
}

// NormalizeChannels drops empty names and duplicates, keeping first-seen order.
func NormalizeChannels(channels []string) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch == "" || slices.Contains(out, ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}
