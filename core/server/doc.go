// Package server runs the operational HTTP endpoint of a quicksilver process:
// Prometheus metrics and health probes served beside a listener loop.
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, mux))
//	g.Go(l.Run(ctx))
//	err = g.Wait()
//
// Start returns nil once ctx is done and in-flight requests have drained or
// ShutdownTimeout elapsed.
package server
