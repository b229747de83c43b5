package broadcast

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigInvalid is returned when no usable store is configured.
	ErrConfigInvalid = errors.New("broadcast: store is not configured")

	// ErrAppendFailed is matched by every *AppendError.
	ErrAppendFailed = errors.New("broadcast: append failed")

	// ErrCursorDead is returned by Receive once per dead cursor. The cursor has
	// already been cleared; call Receive again, preferably after a backoff.
	ErrCursorDead = errors.New("broadcast: cursor is dead")

	// ErrStoreUnavailable wraps transport and connectivity failures of a store.
	ErrStoreUnavailable = errors.New("broadcast: store unavailable")

	// ErrNoChannels is returned by Send when no target channel is given.
	ErrNoChannels = errors.New("broadcast: at least one channel is required")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("broadcast: session is closed")

	// ErrNoMessage is returned by Cursor.Next when HasNext was not true.
	ErrNoMessage = errors.New("broadcast: no message available")
)

// AppendError reports a rejected write together with its target channels.
type AppendError struct {
	Channels []string
	Err      error
}

func (e *AppendError) Error() string {
	msg := fmt.Sprintf("broadcast: unable to append to channels '%s'", strings.Join(e.Channels, ","))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppendError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAppendFailed) true for any *AppendError.
func (e *AppendError) Is(target error) bool { return target == ErrAppendFailed }
