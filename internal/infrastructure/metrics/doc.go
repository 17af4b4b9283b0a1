// Package metrics exposes expvar-published counters for the run engine and
// checkpoint store, plus a Prometheus text renderer for them. The server
// serves both /debug/vars and /metrics from these values.
package metrics
