package broadcast

import (
	"context"
	"time"
)

// Store is the shared append-only log. Implementations must make appends
// atomic and visible in timestamp order to cursors opened afterwards.
type Store interface {
	// Append stores msg at the tail of the log.
	Append(ctx context.Context, msg Message) error

	// OpenCursor returns a forward cursor over records whose timestamp is
	// strictly after origin and whose channels intersect the given set.
	OpenCursor(ctx context.Context, origin time.Time, channels []string) (Cursor, error)
}

// Cursor is a filtered, forward-only position over a Store.
//
// Whether HasNext waits for new records (bounded by the store's own timeout) or
// returns immediately is a property of the store configuration, not of the call.
type Cursor interface {
	// HasNext reports whether a record is available, fetching from the store
	// if needed. A false result with nil error means "nothing yet".
	HasNext(ctx context.Context) (bool, error)

	// Next consumes the record made available by HasNext.
	Next(ctx context.Context) (Message, error)

	// Dead reports whether the cursor can no longer make progress, for example
	// because the log was trimmed past its position or the handle was closed.
	Dead() bool

	// Close releases the cursor. It is safe to call more than once.
	Close(ctx context.Context) error
}
