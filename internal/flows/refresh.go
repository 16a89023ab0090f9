package flows

import (
	"context"

	"github.com/Lionel-Logan/InsightX/jwt"
	"go.uber.org/zap"
)

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Validate func(ctx context.Context, token string) (*jwt.Claims, error)
	FindByID func(ctx context.Context, id string) (*Principal, error)
	Issue    func(ctx context.Context, p *Principal) (TokenPair, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// RunRefresh exchanges a valid refresh token for a new pair. The presented
// token stays valid until it expires or is revoked.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (TokenPair, error) {
	if deps.Validate == nil || deps.FindByID == nil || deps.Issue == nil {
		return TokenPair{}, deps.Errors.NotReady
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	fail := func(userID, tokenID string, err error) (TokenPair, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, userID, tokenID, err, nil)
		return TokenPair{}, err
	}

	claims, err := deps.Validate(ctx, refreshToken)
	if err != nil {
		return fail("", "", err)
	}
	if claims.Kind != jwt.KindRefresh {
		return fail(claims.Subject, claims.ID, deps.Errors.TokenKind)
	}

	principal, err := deps.FindByID(ctx, claims.Subject)
	if err != nil {
		deps.Logger.Error("user lookup failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return fail(claims.Subject, claims.ID, err)
	}
	if principal == nil {
		return fail(claims.Subject, claims.ID, deps.Errors.PrincipalNotFound)
	}
	if err := accountError(principal, deps.Errors); err != nil {
		return fail(principal.ID, claims.ID, err)
	}

	pair, err := deps.Issue(ctx, principal)
	if err != nil {
		return fail(principal.ID, claims.ID, err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, principal.ID, claims.ID, nil, nil)
	return pair, nil
}
