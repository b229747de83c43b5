// Package listener runs a broadcast.Session receive loop.
//
// Empty receives pause for IdleInterval. ErrCursorDead and ErrStoreUnavailable
// back off exponentially, starting at InitialBackoff, and the next cursor
// resumes from the session checkpoint so nothing already delivered is read
// again. Any other error, including one from the handler, stops the loop.
//
//	sess, _ := broadcast.New(store, broadcast.WithChannels("redis"))
//	l, _ := listener.New(sess, func(ctx context.Context, msg broadcast.Message) error {
//		return apply(msg.Payload)
//	}, listener.WithLogger(log))
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(l.Run(ctx))
package listener
