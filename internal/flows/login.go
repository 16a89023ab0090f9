package flows

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string

	// Rate hooks are optional. A hook error that is not RateLimited is a
	// store failure and lets the attempt through.
	CheckLoginRate     func(ctx context.Context, login, ip string) error
	IncrementLoginRate func(ctx context.Context, login, ip string) error
	ResetLoginRate     func(ctx context.Context, login, ip string) error
	RateLimited        error

	FindByLogin     func(ctx context.Context, login string) (*Principal, error)
	VerifyPassword  func(ctx context.Context, p *Principal, plaintext string) (bool, error)
	UpgradePassword func(ctx context.Context, p *Principal, plaintext string)
	Issue           func(ctx context.Context, p *Principal) (TokenPair, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d *LoginDeps) defaults() {
	if d.ClientIPFromContext == nil {
		d.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

// RunLogin checks the throttle, verifies credentials and account state, and
// issues a token pair. Unknown logins and wrong passwords return the same
// error.
func RunLogin(ctx context.Context, login, plaintext string, deps LoginDeps) (TokenPair, *Principal, error) {
	deps.defaults()
	if deps.FindByLogin == nil || deps.VerifyPassword == nil || deps.Issue == nil {
		return TokenPair{}, nil, deps.Errors.NotReady
	}

	ip := deps.ClientIPFromContext(ctx)
	meta := func(reason string) func() map[string]string {
		return func() map[string]string {
			m := map[string]string{"login": login}
			if reason != "" {
				m["reason"] = reason
			}
			return m
		}
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, login, ip); err != nil {
			if errors.Is(err, deps.RateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", "", deps.Errors.LoginRateLimited, meta(""))
				return TokenPair{}, nil, deps.Errors.LoginRateLimited
			}
			deps.Logger.Warn("login throttle check failed, allowing attempt", zap.Error(err))
		}
	}

	fail := func(userID, reason string, err error) (TokenPair, *Principal, error) {
		if deps.IncrementLoginRate != nil {
			if rerr := deps.IncrementLoginRate(ctx, login, ip); rerr != nil && !errors.Is(rerr, deps.RateLimited) {
				deps.Logger.Warn("login throttle increment failed", zap.Error(rerr))
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, "", err, meta(reason))
		return TokenPair{}, nil, err
	}

	if plaintext == "" {
		return fail("", "empty_password", deps.Errors.InvalidCredentials)
	}

	principal, err := deps.FindByLogin(ctx, login)
	if err != nil {
		deps.Logger.Error("user lookup failed", zap.Error(err))
		return fail("", "lookup_error", deps.Errors.InvalidCredentials)
	}
	if principal == nil {
		return fail("", "unknown_login", deps.Errors.InvalidCredentials)
	}

	ok, err := deps.VerifyPassword(ctx, principal, plaintext)
	if err != nil || !ok {
		if err != nil {
			deps.Logger.Warn("password verification error", zap.String("user_id", principal.ID), zap.Error(err))
		}
		return fail(principal.ID, "password_mismatch", deps.Errors.InvalidCredentials)
	}

	if err := accountError(principal, deps.Errors); err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, principal.ID, "", err, meta("account_state"))
		return TokenPair{}, nil, err
	}

	if deps.UpgradePassword != nil {
		deps.UpgradePassword(ctx, principal, plaintext)
	}

	pair, err := deps.Issue(ctx, principal)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, principal.ID, "", err, meta("issue_failed"))
		return TokenPair{}, nil, err
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, login, ip); err != nil {
			deps.Logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, principal.ID, "", nil, nil)
	return pair, principal, nil
}
