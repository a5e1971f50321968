// Package prometheus exposes goAccount engine metrics through
// client_golang.
//
// [NewCollector] returns a prometheus.Collector that reads one
// [goAccount.MetricsSnapshot] per scrape. Counter names are
// goaccount_*_total; the single histogram is
// goaccount_session_resolve_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry; callers register the
//     collector or mount [Collector.Handler].
//   - Mutate engine state.
package prometheus
