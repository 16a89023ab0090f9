package prometheus

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/metrics/export/internaldefs"
	"go.uber.org/zap"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() insightx.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders authority metrics on each scrape.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from auth on every scrape.
func NewPrometheusExporter(auth *insightx.Authority) *PrometheusExporter {
	return &PrometheusExporter{source: auth}
}

func newPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the current metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		if err := p.Encode(w); err != nil {
			zap.L().Debug("metrics scrape aborted", zap.Error(err))
		}
	})
}

// Render returns the exposition text.
func (p *PrometheusExporter) Render() string {
	var sb strings.Builder
	_ = p.Encode(&sb)
	return sb.String()
}

// Encode writes one snapshot in the text exposition format. A nil exporter
// writes nothing.
func (p *PrometheusExporter) Encode(w io.Writer) error {
	if p == nil || p.source == nil {
		return nil
	}
	snap := p.source.MetricsSnapshot()

	bw := bufio.NewWriter(w)
	for _, f := range internaldefs.Families {
		header(bw, f.Name, f.Help, "counter")
		for _, s := range f.Series {
			if f.Labelled() {
				bw.WriteString(f.Name + `{` + internaldefs.ResultLabel + `="` + s.Result + `"} `)
			} else {
				bw.WriteString(f.Name + " ")
			}
			writeUint(bw, snap.Counters[s.ID])
		}
	}

	header(bw, internaldefs.AuditDropped, "Audit events dropped because the buffer was full.", "counter")
	bw.WriteString(internaldefs.AuditDropped + " ")
	writeUint(bw, p.source.AuditDropped())

	// Bucket counts only; the authority does not track a latency sum.
	h := internaldefs.ValidateLatency
	buckets := internaldefs.Cumulative(snap.Histograms[h.ID])
	header(bw, h.Name, h.Help, "histogram")
	for i, le := range internaldefs.LatencyBounds {
		bw.WriteString(h.Name + `_bucket{le="` + le + `"} `)
		writeUint(bw, buckets[i])
	}
	bw.WriteString(h.Name + "_count ")
	writeUint(bw, buckets[len(buckets)-1])

	return bw.Flush()
}

func header(bw *bufio.Writer, name, help, kind string) {
	bw.WriteString("# HELP " + name + " " + help + "\n")
	bw.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeUint(bw *bufio.Writer, v uint64) {
	var buf [20]byte
	bw.Write(strconv.AppendUint(buf[:0], v, 10))
	bw.WriteByte('\n')
}
