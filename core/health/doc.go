// Package health provides liveness and readiness probes for the ops server.
//
//	mux.Handle("/health/live", health.Liveness())
//	mux.Handle("/health/ready", health.Readiness(log, 2*time.Second,
//		store.Healthcheck,
//	))
//
// Checks follow the func(context.Context) error shape returned by the
// Healthcheck helpers in integration/database.
package health
