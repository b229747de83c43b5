package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Helpers return an empty Attr for nil or empty input, which slog drops, so
// log.Info("msg", logger.Error(err)) needs no nil check.

// Error logs err under "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Elapsed logs the time since start under "elapsed".
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// ID logs an identifier under key.
func ID(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}

// MessageID logs a broadcast message ID.
func MessageID(id fmt.Stringer) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("message_id", id.String())
}

// Channels logs channel names joined by commas.
func Channels(channels []string) slog.Attr {
	if len(channels) == 0 {
		return slog.Attr{}
	}
	return slog.String("channels", strings.Join(channels, ","))
}

func Timestamp(t time.Time) slog.Attr {
	return slog.Time("timestamp", t)
}

// Origin logs the timestamp a cursor reads after.
func Origin(t time.Time) slog.Attr {
	return slog.Time("origin", t)
}

// Store names the log store backend.
func Store(name string) slog.Attr {
	return slog.String("store", name)
}

// Backoff logs the delay before the next retry.
func Backoff(d time.Duration) slog.Attr {
	return slog.Duration("backoff", d)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Count logs an integer under key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Key logs any value under key.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}
