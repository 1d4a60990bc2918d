// Package metrics exposes canic's process-wide Prometheus counters and
// gauges, backing the canic_metrics_{system,icc,http,timer,access,perf,
// endpoint_health} query endpoints of spec.md §6. Grounded on
// cuemby-warren's pkg/metrics package (naming convention, Timer helper),
// renamed warren_* to canic_*.
package metrics
