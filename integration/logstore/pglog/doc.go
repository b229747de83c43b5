// Package pglog implements broadcast.Store on a PostgreSQL table.
//
// Messages live in quicksilver_messages, keyed by a bigserial sequence, with
// channels as text[] under a GIN index and the payload as jsonb. Cursors page
// through rows with
//
//	seq > last AND ts > origin AND channels && subscriptions ORDER BY seq
//
// Append also sends NOTIFY on quicksilver_append. In await mode a cursor keeps
// a pooled connection listening on that channel and waits for up to
// MaxAwaitTime before reporting an empty result. When the context passed to
// Append carries a transaction (pg.WithTx), the insert joins it and listeners
// are woken on commit.
//
// Retention is explicit: Trim deletes old rows and raises the trim watermark
// stored in quicksilver_trim_state. Each read returns the watermark and the
// newest sequence together with the page, and a short page moves the cursor
// to that newest sequence, so rows on other channels count as passed. A cursor
// whose position is below the watermark is dead and HasNext returns ErrTrimmed.
//
// Sequence values are assigned at insert time but become visible at commit,
// so concurrent long-running transactions can commit out of sequence order and
// be skipped by cursors that already moved past them. Keep publishing
// transactions short.
//
//	store, err := pglog.Open(ctx, pg.Config{ConnectionString: dsn}, pglog.Config{
//		AwaitData:   true,
//		AutoMigrate: true,
//	})
package pglog
