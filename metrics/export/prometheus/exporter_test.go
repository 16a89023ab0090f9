package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot insightx.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() insightx.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

type noUsers struct{}

func (noUsers) FindByID(context.Context, string) (*insightx.Principal, error)    { return nil, nil }
func (noUsers) FindByLogin(context.Context, string) (*insightx.Principal, error) { return nil, nil }
func (noUsers) VerifyPassword(context.Context, *insightx.Principal, string) (bool, error) {
	return false, nil
}

func TestRenderNilExporter(t *testing.T) {
	var exp *PrometheusExporter
	if exp.Render() != "" {
		t.Fatal("nil exporter should render nothing")
	}
}

func TestRenderZeroSnapshotListsEverySeries(t *testing.T) {
	out := newPrometheusExporterFromSource(fakeSource{}).Render()
	for _, want := range []string{
		"insightx_tokens_issued_total 0",
		`insightx_validations_total{result="inactive"} 0`,
		`insightx_logins_total{result="rate_limited"} 0`,
		"insightx_logouts_total 0",
		`insightx_validate_latency_seconds_bucket{le="+Inf"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := newPrometheusExporterFromSource(fakeSource{
		snapshot: insightx.MetricsSnapshot{
			Counters: map[insightx.MetricID]uint64{
				insightx.MetricValidateRevoked: 7,
				insightx.MetricLoginFailure:    3,
			},
			Histograms: map[insightx.MetricID][]uint64{
				insightx.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE insightx_validations_total counter",
		`insightx_validations_total{result="revoked"} 7`,
		`insightx_validations_total{result="success"} 0`,
		`insightx_logins_total{result="failure"} 3`,
		"# TYPE insightx_validate_latency_seconds histogram",
		`insightx_validate_latency_seconds_bucket{le="0.005"} 1`,
		`insightx_validate_latency_seconds_bucket{le="0.01"} 3`,
		`insightx_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"insightx_validate_latency_seconds_count 36",
		"insightx_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Count(out, "# TYPE insightx_validations_total") != 1 {
		t.Fatalf("family header should appear once:\n%s", out)
	}
}

func TestHandlerServesAuthorityCounters(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := insightx.DefaultConfig()
	cfg.JWT.Secret = []byte("prometheus-exporter-secret-012345")
	auth, err := insightx.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(noUsers{}).Build()
	if err != nil {
		t.Fatalf("build authority: %v", err)
	}
	defer auth.Close()

	ctx := context.Background()
	pair, err := auth.Generate(ctx, &insightx.Principal{ID: "u1", Username: "ada"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := auth.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("validate: %v", err)
	}
	_, _ = auth.Validate(ctx, "garbage")

	rec := httptest.NewRecorder()
	NewPrometheusExporter(auth).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"insightx_tokens_issued_total 1",
		`insightx_validations_total{result="success"} 1`,
		`insightx_validations_total{result="malformed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body, got:\n%s", want, body)
		}
	}
}

func BenchmarkRender(b *testing.B) {
	exp := newPrometheusExporterFromSource(fakeSource{
		snapshot: insightx.MetricsSnapshot{
			Counters: map[insightx.MetricID]uint64{
				insightx.MetricTokensIssued:    1000,
				insightx.MetricValidateSuccess: 90000,
				insightx.MetricValidateExpired: 40,
				insightx.MetricLoginSuccess:    800,
				insightx.MetricLoginFailure:    10,
			},
			Histograms: map[insightx.MetricID][]uint64{
				insightx.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
