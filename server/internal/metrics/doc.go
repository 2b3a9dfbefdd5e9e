// Package metrics exposes the aggregation server's Prometheus instrumentation:
// request counts by method and status, live store size, evictions by reason
// and snapshot writes. Handler serves the registry in exposition format for
// the admin listener.
package metrics
