// Package broadcast provides channel-filtered message broadcast over a shared,
// append-only, time-ordered log.
//
// Publishers append messages tagged with one or more channels. Each reader runs
// its own Session, subscribes to a set of channels and tails the log from an
// origin timestamp, seeing only messages whose channels intersect its
// subscriptions and whose timestamp is strictly after the origin.
//
// # Architecture
//
// The package is built from four pieces:
//   - Store and Cursor: the log store adapter. MemoryStore is included; MongoDB,
//     Redis and PostgreSQL adapters live under integration/logstore.
//   - Subscriptions: the idempotent set of channels a session listens to.
//   - CursorManager: lazily opens a cursor and tracks whether it is alive or dead.
//   - Session: Send, Subscribe and Receive on top of the above.
//
// # Usage
//
//	store := broadcast.NewMemoryStore(broadcast.WithMemoryCapacity(1000))
//
//	pub, _ := broadcast.New(store)
//	_ = pub.Send(ctx, map[string]any{"type": "redis", "command": "flushAll"}, "redis", "workers")
//
//	sub, _ := broadcast.New(store, broadcast.WithChannels("redis"))
//	msg, ok, err := sub.Receive(ctx, startedAt)
//	switch {
//	case errors.Is(err, broadcast.ErrCursorDead):
//		// the reader fell behind the log's retention; back off and retry
//	case err != nil:
//		// store failure
//	case !ok:
//		// nothing yet; try again
//	default:
//		handle(msg)
//	}
//
// # Empty Results and Dead Cursors
//
// Receive distinguishes "nothing to read yet" (ok == false, err == nil) from
// ErrCursorDead. The first is the normal outcome of polling. The second means
// the cursor can no longer make progress; it has already been discarded and the
// next Receive opens a new one from the origin it is passed. Session.Checkpoint
// gives the timestamp of the last delivered message for resuming with replay.
// The package never retries; see pkg/listener for a ready-made loop.
//
// # Origins
//
// The origin passed to Receive is only used when a cursor is opened. While a
// cursor is held, later origins are ignored. Use Session.Reset to force a new
// cursor, which also picks up subscriptions added since the cursor was opened.
//
// # Ordering and Clocks
//
// Messages from a single publisher are delivered in send order. Ordering across
// publishers is only as good as their clock synchronization, which is a
// deployment precondition; nothing here corrects for clock skew.
//
// # Thread Safety
//
// A Session is not safe for concurrent use; run one per goroutine. Stores are
// shared between sessions and synchronize internally.
package broadcast
