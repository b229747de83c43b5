package broadcast

import (
	"log/slog"
	"time"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock overrides the clock used to timestamp sent messages.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an activity observer.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithChannels subscribes the session to channels at construction.
func WithChannels(channels ...string) SessionOption {
	return func(s *Session) {
		s.subs.Subscribe(channels...)
	}
}
