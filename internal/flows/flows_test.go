package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/Lionel-Logan/InsightX/jwt"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalid      = errors.New("invalid credentials")
	errLimited      = errors.New("login limited")
	errDisabled     = errors.New("disabled")
	errUnverified   = errors.New("unverified")
	errKind         = errors.New("kind")
	errNotFound     = errors.New("not found")
	errRateLimited  = errors.New("rate limited")
	errStoreOffline = errors.New("store offline")
)

var testErrors = Errors{
	NotReady:           errNotReady,
	InvalidCredentials: errInvalid,
	LoginRateLimited:   errLimited,
	AccountDisabled:    errDisabled,
	AccountUnverified:  errUnverified,
	TokenKind:          errKind,
	PrincipalNotFound:  errNotFound,
}

var testMetrics = Metrics{LoginSuccess: 1, LoginFailure: 2, LoginRateLimited: 3, RefreshSuccess: 4, RefreshFailure: 5, Logout: 6}

type recorder struct {
	metrics []int
	events  []string
	resets  int
	incs    int
}

func (r *recorder) inc(id int) { r.metrics = append(r.metrics, id) }

func (r *recorder) audit(_ context.Context, event string, _ bool, _, _ string, _ error, _ func() map[string]string) {
	r.events = append(r.events, event)
}

func loginDeps(rec *recorder, p *Principal, password string) LoginDeps {
	return LoginDeps{
		CheckLoginRate:     func(context.Context, string, string) error { return nil },
		IncrementLoginRate: func(context.Context, string, string) error { rec.incs++; return nil },
		ResetLoginRate:     func(context.Context, string, string) error { rec.resets++; return nil },
		RateLimited:        errRateLimited,
		FindByLogin: func(context.Context, string) (*Principal, error) {
			return p, nil
		},
		VerifyPassword: func(_ context.Context, _ *Principal, plaintext string) (bool, error) {
			return plaintext == password, nil
		},
		Issue: func(_ context.Context, p *Principal) (TokenPair, error) {
			return TokenPair{AccessToken: "a-" + p.ID, RefreshToken: "r-" + p.ID}, nil
		},
		MetricInc: rec.inc,
		EmitAudit: rec.audit,
		Metrics:   testMetrics,
		Events:    Events{LoginSuccess: "ok", LoginFailure: "fail", LoginRateLimited: "limited"},
		Errors:    testErrors,
	}
}

func activePrincipal() *Principal {
	return &Principal{ID: "u1", Username: "ada", Role: jwt.RoleUser, Active: true, EmailVerified: true}
}

func TestRunLoginSuccessResetsThrottle(t *testing.T) {
	rec := &recorder{}
	pair, p, err := RunLogin(context.Background(), "ada", "secret-pass", loginDeps(rec, activePrincipal(), "secret-pass"))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken != "a-u1" || p.ID != "u1" {
		t.Fatalf("unexpected result %+v %+v", pair, p)
	}
	if rec.resets != 1 || rec.incs != 0 {
		t.Fatalf("expected one reset and no increments, got resets=%d incs=%d", rec.resets, rec.incs)
	}
	if len(rec.events) != 1 || rec.events[0] != "ok" {
		t.Fatalf("unexpected events %v", rec.events)
	}
}

func TestRunLoginFailuresCountAttempts(t *testing.T) {
	tests := []struct {
		name     string
		p        *Principal
		password string
		want     error
		incs     int
	}{
		{name: "unknown", p: nil, password: "secret-pass", want: errInvalid, incs: 1},
		{name: "mismatch", p: activePrincipal(), password: "wrong", want: errInvalid, incs: 1},
		{name: "empty password", p: activePrincipal(), password: "", want: errInvalid, incs: 1},
		{name: "disabled", p: &Principal{ID: "u1", EmailVerified: true}, password: "secret-pass", want: errDisabled},
		{name: "unverified", p: &Principal{ID: "u1", Active: true}, password: "secret-pass", want: errUnverified},
		{name: "unknown role", p: &Principal{ID: "u1", Role: "ROOT", Active: true, EmailVerified: true}, password: "secret-pass", want: errDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, p, err := RunLogin(context.Background(), "ada", tt.password, loginDeps(rec, tt.p, "secret-pass"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if p != nil {
				t.Fatalf("expected no principal, got %+v", p)
			}
			if rec.incs != tt.incs {
				t.Fatalf("expected %d increments, got %d", tt.incs, rec.incs)
			}
			if len(rec.metrics) != 1 || rec.metrics[0] != testMetrics.LoginFailure {
				t.Fatalf("unexpected metrics %v", rec.metrics)
			}
		})
	}
}

func TestRunLoginRateLimitedAndFailOpen(t *testing.T) {
	rec := &recorder{}
	deps := loginDeps(rec, activePrincipal(), "secret-pass")
	deps.CheckLoginRate = func(context.Context, string, string) error { return errRateLimited }
	if _, _, err := RunLogin(context.Background(), "ada", "secret-pass", deps); !errors.Is(err, errLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	if len(rec.events) != 1 || rec.events[0] != "limited" {
		t.Fatalf("unexpected events %v", rec.events)
	}

	deps.CheckLoginRate = func(context.Context, string, string) error { return errStoreOffline }
	if _, _, err := RunLogin(context.Background(), "ada", "secret-pass", deps); err != nil {
		t.Fatalf("store failure should let the attempt through, got %v", err)
	}
}

func TestRunLoginUpgradeRunsBeforeIssue(t *testing.T) {
	rec := &recorder{}
	deps := loginDeps(rec, activePrincipal(), "secret-pass")
	var order []string
	deps.UpgradePassword = func(context.Context, *Principal, string) { order = append(order, "upgrade") }
	issue := deps.Issue
	deps.Issue = func(ctx context.Context, p *Principal) (TokenPair, error) {
		order = append(order, "issue")
		return issue(ctx, p)
	}

	if _, _, err := RunLogin(context.Background(), "ada", "secret-pass", deps); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(order) != 2 || order[0] != "upgrade" || order[1] != "issue" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRunLoginNotReady(t *testing.T) {
	if _, _, err := RunLogin(context.Background(), "ada", "x", LoginDeps{Errors: testErrors}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func refreshDeps(rec *recorder, kind jwt.Kind, p *Principal) RefreshDeps {
	return RefreshDeps{
		Validate: func(context.Context, string) (*jwt.Claims, error) {
			return &jwt.Claims{Subject: "u1", Kind: kind, ID: "jti-1"}, nil
		},
		FindByID: func(context.Context, string) (*Principal, error) { return p, nil },
		Issue: func(_ context.Context, p *Principal) (TokenPair, error) {
			return TokenPair{AccessToken: "a2-" + p.ID}, nil
		},
		MetricInc: rec.inc,
		EmitAudit: rec.audit,
		Metrics:   testMetrics,
		Events:    Events{RefreshSuccess: "ok", RefreshFailure: "fail"},
		Errors:    testErrors,
	}
}

func TestRunRefresh(t *testing.T) {
	tests := []struct {
		name string
		kind jwt.Kind
		p    *Principal
		want error
	}{
		{name: "ok", kind: jwt.KindRefresh, p: activePrincipal()},
		{name: "access token", kind: jwt.KindAccess, p: activePrincipal(), want: errKind},
		{name: "gone", kind: jwt.KindRefresh, p: nil, want: errNotFound},
		{name: "disabled", kind: jwt.KindRefresh, p: &Principal{ID: "u1", EmailVerified: true}, want: errDisabled},
		{name: "unknown role", kind: jwt.KindRefresh, p: &Principal{ID: "u1", Role: "ROOT", Active: true, EmailVerified: true}, want: errDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			pair, err := RunRefresh(context.Background(), "tok", refreshDeps(rec, tt.kind, tt.p))
			if tt.want == nil {
				if err != nil || pair.AccessToken != "a2-u1" {
					t.Fatalf("unexpected result %+v %v", pair, err)
				}
				if rec.metrics[0] != testMetrics.RefreshSuccess {
					t.Fatalf("unexpected metrics %v", rec.metrics)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if rec.metrics[0] != testMetrics.RefreshFailure {
				t.Fatalf("unexpected metrics %v", rec.metrics)
			}
		})
	}
}

func TestRunRefreshPropagatesValidateError(t *testing.T) {
	rec := &recorder{}
	deps := refreshDeps(rec, jwt.KindRefresh, activePrincipal())
	deps.Validate = func(context.Context, string) (*jwt.Claims, error) { return nil, jwt.ErrExpired }

	if _, err := RunRefresh(context.Background(), "tok", deps); !errors.Is(err, jwt.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRunLogoutAttemptsEveryToken(t *testing.T) {
	rec := &recorder{}
	var revoked []string
	deps := LogoutDeps{
		Revoke: func(_ context.Context, token string) error {
			revoked = append(revoked, token)
			if token == "bad" {
				return errStoreOffline
			}
			return nil
		},
		Subject:   func(string) string { return "u1" },
		MetricInc: rec.inc,
		EmitAudit: rec.audit,
		Metrics:   testMetrics,
		Events:    Events{Logout: "logout"},
		Errors:    testErrors,
	}

	err := RunLogout(context.Background(), []string{"bad", "", "good"}, deps)
	if !errors.Is(err, errStoreOffline) {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(revoked) != 2 || revoked[0] != "bad" || revoked[1] != "good" {
		t.Fatalf("unexpected revocations %v", revoked)
	}
	if len(rec.events) != 1 || rec.events[0] != "logout" {
		t.Fatalf("unexpected events %v", rec.events)
	}

	if err := RunLogout(context.Background(), nil, LogoutDeps{Errors: testErrors}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
