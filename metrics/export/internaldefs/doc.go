// Package internaldefs maps authority metric IDs onto exported series so
// the Prometheus and OpenTelemetry exporters publish the same names, labels
// and buckets.
package internaldefs
