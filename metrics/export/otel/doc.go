// Package otel binds authority metrics to an OpenTelemetry meter.
//
// The caller owns the MeterProvider. A single registered callback reads
// [insightx.Authority.MetricsSnapshot] on each collection cycle, so the
// exporter never writes to the authority.
package otel
