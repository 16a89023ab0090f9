// Package prometheus serves authority metrics in the Prometheus text format.
//
// Outcome counters share one family per operation with a result label, for
// example insightx_validations_total{result="revoked"}. Nothing is
// registered globally; mount [PrometheusExporter.Handler] wherever the
// scraper expects it.
package prometheus
