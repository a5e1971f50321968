// Package otel exposes goAccount engine metrics as OpenTelemetry observable
// instruments.
//
// Counters map to Int64ObservableCounter. The session resolve latency
// histogram is exported as one cumulative gauge per bucket plus count and
// sum gauges, matching the engine's fixed buckets.
//
// # What this package must NOT do
//
//   - Create a MeterProvider; callers pass a metric.Meter.
//   - Mutate engine state.
package otel
