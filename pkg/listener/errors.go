package listener

import "errors"

var (
	ErrReceiverNil      = errors.New("listener: receiver is nil")
	ErrHandlerNil       = errors.New("listener: handler is nil")
	ErrAlreadyRunning   = errors.New("listener: already running")
	ErrHandlerFailed    = errors.New("listener: handler failed")
	ErrRetriesExhausted = errors.New("listener: retries exhausted")
)
