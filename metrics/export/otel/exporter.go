package otel

import (
	"context"
	"errors"
	"fmt"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when there is no authority to read from.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() insightx.MetricsSnapshot
	AuditDropped() uint64
}

// point is one observation target: an instrument, the snapshot slot it
// reads and the attributes it is reported under.
type point struct {
	id    insightx.MetricID
	inst  metric.Int64Observable
	attrs metric.ObserveOption
}

// OTelExporter publishes authority metrics as observable instruments.
// Outcome families become one counter with a result attribute; the
// validate latency histogram becomes a bucket gauge keyed by le.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     []point
	bucket       metric.Int64ObservableGauge
	bucketAttrs  [8]metric.ObserveOption
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from auth at
// collection time. Close unregisters them.
func NewOTelExporter(meter metric.Meter, auth *insightx.Authority) (*OTelExporter, error) {
	if auth == nil {
		return nil, ErrNilSource
	}
	return newOTelExporterFromSource(meter, auth)
}

func newOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, f := range internaldefs.Families {
		inst, err := meter.Int64ObservableCounter(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.Name, err)
		}
		observables = append(observables, inst)
		for _, s := range f.Series {
			var attrs attribute.Set
			if f.Labelled() {
				attrs = attribute.NewSet(attribute.String(internaldefs.ResultLabel, s.Result))
			}
			e.counters = append(e.counters, point{id: s.ID, inst: inst, attrs: metric.WithAttributeSet(attrs)})
		}
	}

	h := internaldefs.ValidateLatency
	var err error
	if e.bucket, err = meter.Int64ObservableGauge(h.Name+"_bucket", metric.WithDescription(h.Help+" Cumulative count per upper bound.")); err != nil {
		return nil, fmt.Errorf("create bucket gauge: %w", err)
	}
	for i, le := range internaldefs.LatencyBounds {
		e.bucketAttrs[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	if e.count, err = meter.Int64ObservableGauge(h.Name+"_count", metric.WithDescription(h.Help+" Total samples.")); err != nil {
		return nil, fmt.Errorf("create count gauge: %w", err)
	}
	if e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDropped, metric.WithDescription("Audit events dropped because the buffer was full.")); err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.bucket, e.count, e.auditDropped)

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, p := range e.counters {
		o.ObserveInt64(p.inst, int64(snap.Counters[p.id]), p.attrs)
	}

	buckets := internaldefs.Cumulative(snap.Histograms[internaldefs.ValidateLatency.ID])
	for i, v := range buckets {
		o.ObserveInt64(e.bucket, int64(v), e.bucketAttrs[i])
	}
	o.ObserveInt64(e.count, int64(buckets[len(buckets)-1]))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
