package internaldefs

import (
	insightx "github.com/Lionel-Logan/InsightX"
)

// ResultLabel splits a family into one series per outcome.
const ResultLabel = "result"

// AuditDropped is exported beside the families; it is read from the audit
// dispatcher rather than the metrics snapshot.
const AuditDropped = "insightx_audit_dropped_total"

// Series is one counter inside a family. Result is empty for families
// without a result label.
type Series struct {
	ID     insightx.MetricID
	Result string
}

// Family is one exported counter name.
type Family struct {
	Name   string
	Help   string
	Series []Series
}

// Labelled reports whether the family carries a result label.
func (f Family) Labelled() bool {
	return len(f.Series) > 1 || (len(f.Series) == 1 && f.Series[0].Result != "")
}

// Families lists every exported counter in render order.
var Families = []Family{
	{
		Name:   "insightx_tokens_issued_total",
		Help:   "Token pairs issued.",
		Series: []Series{{ID: insightx.MetricTokensIssued}},
	},
	{
		Name: "insightx_validations_total",
		Help: "Token validations by outcome.",
		Series: []Series{
			{ID: insightx.MetricValidateSuccess, Result: "success"},
			{ID: insightx.MetricValidateInvalidSignature, Result: "bad_signature"},
			{ID: insightx.MetricValidateMalformed, Result: "malformed"},
			{ID: insightx.MetricValidateExpired, Result: "expired"},
			{ID: insightx.MetricValidateRevoked, Result: "revoked"},
			{ID: insightx.MetricValidateInactive, Result: "inactive"},
		},
	},
	{
		Name: "insightx_revocations_total",
		Help: "Revocation writes by outcome.",
		Series: []Series{
			{ID: insightx.MetricRevokeSuccess, Result: "success"},
			{ID: insightx.MetricRevokeFailure, Result: "failure"},
		},
	},
	{
		Name:   "insightx_store_fail_open_total",
		Help:   "Session store reads answered with the permissive default.",
		Series: []Series{{ID: insightx.MetricStoreFailOpen}},
	},
	{
		Name: "insightx_logins_total",
		Help: "Login attempts by outcome.",
		Series: []Series{
			{ID: insightx.MetricLoginSuccess, Result: "success"},
			{ID: insightx.MetricLoginFailure, Result: "failure"},
			{ID: insightx.MetricLoginRateLimited, Result: "rate_limited"},
		},
	},
	{
		Name: "insightx_refreshes_total",
		Help: "Refresh exchanges by outcome.",
		Series: []Series{
			{ID: insightx.MetricRefreshSuccess, Result: "success"},
			{ID: insightx.MetricRefreshFailure, Result: "failure"},
		},
	},
	{
		Name:   "insightx_logouts_total",
		Help:   "Logout calls.",
		Series: []Series{{ID: insightx.MetricLogout}},
	},
}

// ValidateLatency describes the only histogram.
var ValidateLatency = struct {
	ID   insightx.MetricID
	Name string
	Help string
}{
	ID:   insightx.MetricValidateLatency,
	Name: "insightx_validate_latency_seconds",
	Help: "Time spent in Validate.",
}

// LatencyBounds are the bucket upper bounds in seconds, matching the
// authority's 5ms to 500ms buckets plus overflow.
var LatencyBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Cumulative turns the snapshot's per-bucket counts into running totals.
// Missing trailing buckets count as zero.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
