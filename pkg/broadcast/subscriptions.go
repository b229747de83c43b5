package broadcast

import (
	"maps"
	"slices"
)

// Subscriptions is the set of channel names a session listens to.
// It is not safe for concurrent use.
type Subscriptions struct {
	set map[string]struct{}
}

// NewSubscriptions returns a set holding the given channels.
func NewSubscriptions(channels ...string) *Subscriptions {
	s := &Subscriptions{set: make(map[string]struct{}, len(channels))}
	s.Subscribe(channels...)
	return s
}

// Subscribe adds channels to the set. Existing and empty names are ignored.
func (s *Subscriptions) Subscribe(channels ...string) {
	if s.set == nil {
		s.set = make(map[string]struct{}, len(channels))
	}
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		s.set[ch] = struct{}{}
	}
}

// List returns the subscribed channels in sorted order.
func (s *Subscriptions) List() []string {
	return slices.Sorted(maps.Keys(s.set))
}

// Has reports whether channel is subscribed.
func (s *Subscriptions) Has(channel string) bool {
	_, ok := s.set[channel]
	return ok
}

// Len returns the number of subscribed channels.
func (s *Subscriptions) Len() int {
	return len(s.set)
}
