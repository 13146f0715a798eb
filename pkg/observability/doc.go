/*
Package observability turns engine lifecycle hooks into logs and Prometheus
metrics.

	metrics := observability.NewMetrics()
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
	eng, _ := tick.New(cfg, reg, tick.WithLifecycleHooks(hooks))
	http.Handle("/metrics", metrics.Handler())
*/
package observability
