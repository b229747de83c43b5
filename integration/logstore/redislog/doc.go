// Package redislog implements broadcast.Store on a Redis stream.
//
// Append issues XADD with an approximate MAXLEN, so the stream behaves like a
// capped log. Each entry carries four fields:
//
//	id        message UUID
//	ts        publisher timestamp, Unix nanoseconds
//	channels  msgpack-encoded []string
//	payload   msgpack-encoded payload
//
// Cursors read with XREAD from the last scanned entry ID and filter on the
// client by timestamp and channel. With AwaitData an empty read blocks for up
// to MaxAwaitTime. A cursor whose origin, minus ClockSkew, is not older than
// the newest entry starts after it; otherwise it starts at the oldest retained
// entry, since entry IDs follow the Redis clock rather than the publisher's.
//
// Every read runs in MULTI together with XINFO STREAM. The cursor counts the
// entries it has passed; once entries-added minus the stream length exceeds
// that count, trimming removed entries it never read, the cursor is dead and
// HasNext returns ErrTrimmed. Entries removed with XDEL count as trimmed.
// Requires Redis 7.0 or newer.
//
//	client, _ := redis.Connect(ctx, redis.Config{ConnectionURL: "redis://localhost:6379/0"})
//	store, _ := redislog.New(client, redislog.Config{Stream: "quicksilver", AwaitData: true})
package redislog
