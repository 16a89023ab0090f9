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
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Lionel-Logan/InsightX"

// Builder assembles an [Authority]. Configure it during initialization and
// call Build once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     UserStore
	logger    *zap.Logger
	clock     func() time.Time
	auditSink AuditSink
	tracing   trace.TracerProvider

	built bool
}

// New returns a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithLogger sets the logger; the default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock for token timestamps and activity
// records. Tests use it to move through the inactivity window.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets where spans go; the default is the global
// provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracing = tp
	return b
}

// Build validates the configuration and wires the authority. Configuration
// problems are returned as *ConfigurationError.
func (b *Builder) Build() (*Authority, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("insightx")
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	tp := b.tracing
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Now:    clock,
	})
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)
	storeOpts := session.Options{
		Prefix:  cfg.Store.RedisPrefix,
		Timeout: cfg.Store.OpTimeout,
		Logger:  logger.Named("session"),
		Now:     clock,
		// Keep activity records at least as long as an access token can live
		// so inactivity stays observable when AccessTTL exceeds the window.
		ActivityRetention: cfg.JWT.AccessTTL,
		OnFailOpen: func(string) {
			metrics.Inc(MetricStoreFailOpen)
		},
	}

	a := &Authority{
		config:      cfg,
		codec:       codec,
		activity:    session.NewActivityTracker(b.redis, cfg.JWT.RefreshTTL, storeOpts),
		revocations: session.NewRevocationStore(b.redis, storeOpts),
		limiter: rate.New(b.redis, rate.Config{
			Prefix:              cfg.Store.RedisPrefix,
			Timeout:             cfg.Store.OpTimeout,
			EnableIPThrottle:    cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:    cfg.Security.MaxLoginAttempts,
			LoginCooldownWindow: cfg.Security.LoginCooldownDuration,
		}),
		hasher:  hasher,
		users:   b.users,
		audit:   audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink),
		metrics: metrics,
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		clock:   clock,
	}
	a.wireFlows()

	b.built = true
	return a, nil
}

func (a *Authority) wireFlows() {
	metricIDs := flows.Metrics{
		LoginSuccess:     int(MetricLoginSuccess),
		LoginFailure:     int(MetricLoginFailure),
		LoginRateLimited: int(MetricLoginRateLimited),
		RefreshSuccess:   int(MetricRefreshSuccess),
		RefreshFailure:   int(MetricRefreshFailure),
		Logout:           int(MetricLogout),
	}
	events := flows.Events{
		LoginSuccess:     AuditLoginSuccess,
		LoginFailure:     AuditLoginFailure,
		LoginRateLimited: AuditLoginRateLimited,
		RefreshSuccess:   AuditRefreshSuccess,
		RefreshFailure:   AuditRefreshFailure,
		Logout:           AuditLogout,
	}
	errs := flows.Errors{
		NotReady:           ErrAuthorityNotReady,
		InvalidCredentials: ErrInvalidCredentials,
		LoginRateLimited:   ErrLoginRateLimited,
		AccountDisabled:    ErrAccountDisabled,
		AccountUnverified:  ErrAccountUnverified,
		TokenKind:          ErrTokenKind,
		PrincipalNotFound:  ErrPrincipalNotFound,
	}
	metricInc := func(id int) { a.metrics.Inc(MetricID(id)) }
	issue := func(ctx context.Context, p *flows.Principal) (flows.TokenPair, error) {
		pair, err := a.Generate(ctx, (*Principal)(p))
		return flows.TokenPair(pair), err
	}
	findByID := func(ctx context.Context, id string) (*flows.Principal, error) {
		p, err := a.users.FindByID(ctx, id)
		return (*flows.Principal)(p), err
	}

	a.loginDeps = flows.LoginDeps{
		ClientIPFromContext: clientIPFromContext,
		CheckLoginRate:      a.limiter.CheckLogin,
		IncrementLoginRate:  a.limiter.IncrementLogin,
		ResetLoginRate:      a.limiter.ResetLogin,
		RateLimited:         rate.ErrRateLimited,
		FindByLogin: func(ctx context.Context, login string) (*flows.Principal, error) {
			p, err := a.users.FindByLogin(ctx, login)
			return (*flows.Principal)(p), err
		},
		VerifyPassword: func(ctx context.Context, p *flows.Principal, plaintext string) (bool, error) {
			return a.users.VerifyPassword(ctx, (*Principal)(p), plaintext)
		},
		Issue:     issue,
		MetricInc: metricInc,
		EmitAudit: a.emitAudit,
		Logger:    a.logger.Named("login"),
		Metrics:   metricIDs,
		Events:    events,
		Errors:    errs,
	}
	if upgrader, ok := a.users.(PasswordUpgrader); ok && a.config.Security.UpgradePasswordOnLogin {
		a.loginDeps.UpgradePassword = func(ctx context.Context, p *flows.Principal, plaintext string) {
			a.upgradePassword(ctx, upgrader, (*Principal)(p), plaintext)
		}
	}

	a.refreshDeps = flows.RefreshDeps{
		Validate:  a.Validate,
		FindByID:  findByID,
		Issue:     issue,
		MetricInc: metricInc,
		EmitAudit: a.emitAudit,
		Logger:    a.logger.Named("refresh"),
		Metrics:   metricIDs,
		Events:    events,
		Errors:    errs,
	}

	a.logoutDeps = flows.LogoutDeps{
		Revoke: a.Revoke,
		Subject: func(token string) string {
			claims, err := a.codec.Decode(token)
			if err != nil {
				return ""
			}
			return claims.Subject
		},
		MetricInc: metricInc,
		EmitAudit: a.emitAudit,
		Metrics:   metricIDs,
		Events:    events,
		Errors:    errs,
	}
}

func (a *Authority) upgradePassword(ctx context.Context, upgrader PasswordUpgrader, p *Principal, plaintext string) {
	needs, err := a.hasher.NeedsRehash(p.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := a.hasher.Hash(plaintext)
	if err != nil {
		a.logger.Warn("password rehash failed", zap.String("user_id", p.ID), zap.Error(err))
		return
	}
	if err := upgrader.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		a.logger.Warn("password hash upgrade not stored", zap.String("user_id", p.ID), zap.Error(err))
	}
}
