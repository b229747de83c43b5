// Package prommetrics exports broadcast session activity to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	obs, err := prommetrics.New(reg, "mongo")
//	sess, err := broadcast.New(store, broadcast.WithObserver(obs))
//	http.Handle("/metrics", prommetrics.Handler(reg))
package prommetrics
