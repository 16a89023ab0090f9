package flows

import (
	"context"
	"strconv"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Revoke func(ctx context.Context, token string) error
	// Subject extracts the subject for the audit record; it may return "".
	Subject func(token string) string

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// RunLogout revokes every non-empty token. All tokens are attempted; the
// first error is returned.
func RunLogout(ctx context.Context, tokens []string, deps LogoutDeps) error {
	if deps.Revoke == nil {
		return deps.Errors.NotReady
	}

	var (
		first   error
		subject string
		revoked int
	)
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if subject == "" && deps.Subject != nil {
			subject = deps.Subject(token)
		}
		if err := deps.Revoke(ctx, token); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		revoked++
	}

	if deps.MetricInc != nil {
		deps.MetricInc(deps.Metrics.Logout)
	}
	if deps.EmitAudit != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, first == nil, subject, "", first, func() map[string]string {
			return map[string]string{"revoked": strconv.Itoa(revoked)}
		})
	}
	return first
}
