/*
Package monitoring provides Prometheus metrics for every context.

# Overview

Each process builds one Metrics value on a private registry, so several
collectors can coexist in tests without clashing on global registration.

# Metrics

- HTTP request count and latency (host API and page control surface)
- Interceptor actions: captured, suppressed, forwarded
- Replay outcomes and round-trip time
- Cross-context messages and fire-and-forget drops
- Relay cache queries and connected pages

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... replay ...
	timer.Stop("locked")
*/
package monitoring
