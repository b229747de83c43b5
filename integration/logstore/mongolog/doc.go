// Package mongolog implements broadcast.Store on a MongoDB capped collection.
//
// Messages are inserted as
//
//	{ _id, id, message: <payload>, timestamp: <date>, channels: [<string>...] }
//
// and read through tailable cursors filtered with
// {timestamp: {$gt: origin}, channels: {$in: subscriptions}} in natural order.
// With AwaitData the server holds each getMore for up to MaxAwaitTime before
// reporting "no document", otherwise polling returns immediately.
//
// A cursor is dead once the server has exhausted it (cursor ID 0), which also
// happens when the initial query matched nothing, or when the server reports
// that the capped collection overwrote its position. The broadcast session
// clears it and the next Receive opens a new one.
//
//	store, err := mongolog.Open(ctx, mongolog.Config{
//		Hosts:      "mongo-1:27017,mongo-2:27017",
//		ReplicaSet: "rs0",
//		Database:   "quicksilver",
//		Collection: "messages",
//		AwaitData:  true,
//	})
package mongolog
