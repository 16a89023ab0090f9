package insightx

import (
	"context"
	"errors"
	"time"

	"github.com/Lionel-Logan/InsightX/internal/audit"
	"github.com/Lionel-Logan/InsightX/internal/flows"
	"github.com/Lionel-Logan/InsightX/internal/rate"
	"github.com/Lionel-Logan/InsightX/jwt"
	"github.com/Lionel-Logan/InsightX/password"
	"github.com/Lionel-Logan/InsightX/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Authority issues, validates and revokes tokens. It owns the policy that
// combines signature validity, sliding inactivity and revocation.
//
// An Authority is safe for concurrent use once built.
type Authority struct {
	config      Config
	codec       *jwt.Codec
	activity    *session.ActivityTracker
	revocations *session.RevocationStore
	limiter     *rate.Limiter
	hasher      *password.Hasher
	users       UserStore
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	clock       func() time.Time

	loginDeps   flows.LoginDeps
	refreshDeps flows.RefreshDeps
	logoutDeps  flows.LogoutDeps
}

// Close flushes pending audit events.
func (a *Authority) Close() {
	if a == nil {
		return
	}
	a.audit.Close()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (a *Authority) MetricsSnapshot() MetricsSnapshot {
	if a == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return a.metrics.Snapshot()
}

// Users returns the store the authority reads principals from.
func (a *Authority) Users() UserStore {
	if a == nil {
		return nil
	}
	return a.users
}

// ActivityWindow returns the inactivity window (the refresh lifetime).
func (a *Authority) ActivityWindow() time.Duration {
	if a == nil {
		return 0
	}
	return a.config.JWT.RefreshTTL
}

// Generate issues an access and a refresh token for p and records activity.
// A failed activity write does not fail generation: the record's absence
// already reads as active.
func (a *Authority) Generate(ctx context.Context, p *Principal) (TokenPair, error) {
	if a == nil || a.codec == nil {
		return TokenPair{}, ErrAuthorityNotReady
	}
	if p == nil || p.ID == "" {
		return TokenPair{}, errors.New("principal id is required")
	}

	ctx, span := a.tracer.Start(ctx, "insightx.Generate", trace.WithAttributes(attribute.String("subject", p.ID)))
	defer span.End()

	role := p.Role
	if role == "" {
		role = RoleUser
	}
	claims := Claims{Subject: p.ID, Username: p.Username, Email: p.Email, Role: role}

	now := a.now()
	access, err := a.codec.Encode(claims, KindAccess, a.config.JWT.AccessTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode access")
		return TokenPair{}, err
	}
	refresh, err := a.codec.Encode(claims, KindRefresh, a.config.JWT.RefreshTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode refresh")
		return TokenPair{}, err
	}

	_ = a.activity.Touch(ctx, p.ID)
	a.metrics.Inc(MetricTokensIssued)

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(a.config.JWT.AccessTTL),
		RefreshExpiresAt: now.Add(a.config.JWT.RefreshTTL),
	}, nil
}

// Validate checks token against revocation, signature and expiry, and for
// access tokens the subject's inactivity window. A valid access token
// refreshes the window. Store failures never surface here: reads fail open.
//
// Errors are ErrTokenRevoked, ErrTokenMalformed, ErrTokenBadSignature,
// ErrTokenExpired or ErrSubjectInactive; use [StateOf] to classify.
func (a *Authority) Validate(ctx context.Context, token string) (*Claims, error) {
	if a == nil || a.codec == nil {
		return nil, ErrAuthorityNotReady
	}

	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "insightx.Validate")
	defer span.End()

	claims, err := a.validate(ctx, token)

	state := StateOf(err)
	a.metrics.Inc(stateMetric(state))
	a.metrics.ObserveValidate(time.Since(start))
	span.SetAttributes(attribute.String("token.state", state.String()))
	if err != nil {
		span.SetStatus(codes.Error, state.String())
		a.logger.Debug("token rejected", zap.Stringer("state", state), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("subject", claims.Subject), attribute.String("token.kind", string(claims.Kind)))
	return claims, nil
}

func (a *Authority) validate(ctx context.Context, token string) (*Claims, error) {
	if a.revocations.IsRevoked(ctx, token) {
		return nil, ErrTokenRevoked
	}

	claims, err := a.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if claims.Kind == KindAccess {
		if !a.activity.IsActive(ctx, claims.Subject) {
			return nil, ErrSubjectInactive
		}
		_ = a.activity.Touch(ctx, claims.Subject)
	}
	return claims, nil
}

// Revoke blacklists token for the rest of its natural life. An already
// expired token needs nothing and returns nil; an undecodable token returns
// the decode error. A store failure is returned wrapped in
// [ErrStoreUnavailable].
func (a *Authority) Revoke(ctx context.Context, token string) error {
	if a == nil || a.codec == nil {
		return ErrAuthorityNotReady
	}

	ctx, span := a.tracer.Start(ctx, "insightx.Revoke")
	defer span.End()

	claims, err := a.codec.Decode(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil
		}
		span.SetStatus(codes.Error, StateOf(err).String())
		return err
	}
	span.SetAttributes(attribute.String("subject", claims.Subject), attribute.String("token.kind", string(claims.Kind)))

	remaining := a.codec.Remaining(claims)
	if err := a.revocations.Revoke(ctx, token, remaining); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "revocation store")
		a.metrics.Inc(MetricRevokeFailure)
		a.logger.Warn("token revocation failed", zap.String("subject", claims.Subject), zap.Error(err))
		a.emitAudit(ctx, AuditRevokeFailure, false, claims.Subject, claims.ID, err, nil)
		return err
	}

	a.metrics.Inc(MetricRevokeSuccess)
	a.emitAudit(ctx, AuditTokenRevoked, true, claims.Subject, claims.ID, nil, func() map[string]string {
		return map[string]string{"kind": string(claims.Kind), "remaining": remaining.Truncate(time.Second).String()}
	})
	return nil
}

// Login authenticates login/plaintext against the user store and issues a
// token pair. The client IP for throttling is read from ctx (see
// [WithClientIP]).
func (a *Authority) Login(ctx context.Context, login, plaintext string) (TokenPair, *Principal, error) {
	if a == nil {
		return TokenPair{}, nil, ErrAuthorityNotReady
	}
	pair, p, err := flows.RunLogin(ctx, login, plaintext, a.loginDeps)
	return TokenPair(pair), (*Principal)(p), err
}

// Refresh exchanges a refresh token for a new pair and restores the
// subject's activity. The presented refresh token is not rotated.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if a == nil {
		return TokenPair{}, ErrAuthorityNotReady
	}
	pair, err := flows.RunRefresh(ctx, refreshToken, a.refreshDeps)
	return TokenPair(pair), err
}

// Logout revokes the given tokens; empty strings are skipped.
func (a *Authority) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if a == nil {
		return ErrAuthorityNotReady
	}
	return flows.RunLogout(ctx, []string{accessToken, refreshToken}, a.logoutDeps)
}
