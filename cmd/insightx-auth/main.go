// Command insightx-auth serves the InsightX token API: login, refresh,
// logout and identity lookup over HTTP, backed by Redis for session state
// and PostgreSQL for accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/internal/config"
	"github.com/Lionel-Logan/InsightX/internal/httpapi"
	"github.com/Lionel-Logan/InsightX/internal/rate"
	"github.com/Lionel-Logan/InsightX/internal/store/postgres"
	"github.com/Lionel-Logan/InsightX/internal/telemetry"
	"github.com/Lionel-Logan/InsightX/metrics/export/prometheus"
	"github.com/Lionel-Logan/InsightX/middleware"
	"github.com/Lionel-Logan/InsightX/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "insightx-auth: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.ServiceName,
		Environment: cfg.AppEnv,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Session reads fail open, so a cold Redis is survivable.
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	authCfg := cfg.Authority()
	hasher, err := password.NewHasher(authCfg.Password)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	users := postgres.NewUserStore(db, hasher)

	if err := seedAdmin(ctx, users, cfg.Seed, logger); err != nil {
		return err
	}

	builder := insightx.New().
		WithConfig(authCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(logger).
		WithTracerProvider(tel.TracerProvider())
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(insightx.NewZapSink(logger.Named("audit")))
	}
	auth, err := builder.Build()
	if err != nil {
		return fmt.Errorf("authority build: %w", err)
	}
	defer auth.Close()
	logSecurityReport(logger, auth.SecurityReport())

	api := httpapi.New(auth, httpapi.Options{
		Logger: logger,
		Checks: map[string]httpapi.Check{
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"postgres": db.PingContext,
		},
		Metrics:  prometheus.NewPrometheusExporter(auth).Handler(),
		Register: registerWith(users),
	})

	limiter := rate.New(rdb, rate.Config{
		Prefix:        cfg.Redis.Prefix,
		Timeout:       cfg.Redis.OpTimeout,
		MaxRequests:   cfg.RateLimit.Requests,
		RequestWindow: cfg.RateLimit.Window,
	})
	authn := middleware.NewAuthenticator(auth, users, middleware.Options{Logger: logger})

	var handler http.Handler = api.Routes()
	handler = authn.Handler(handler)
	handler = middleware.RateLimit(limiter, logger)(handler)
	handler = middleware.ClientIP(handler)
	handler = httpapi.RequestLogger(logger)(handler)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("service", cfg.ServiceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// seedAdmin creates the configured admin account unless it already exists.
func seedAdmin(ctx context.Context, users *postgres.UserStore, seed config.Seed, logger *zap.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	existing, err := users.FindByLogin(ctx, seed.Email)
	if err != nil {
		return fmt.Errorf("seed admin lookup: %w", err)
	}
	if existing != nil {
		return nil
	}

	username, _, _ := strings.Cut(seed.Email, "@")
	p, err := users.Create(ctx, postgres.NewUser{
		Username:      username,
		Email:         seed.Email,
		Password:      seed.Password,
		Role:          insightx.RoleAdmin,
		Active:        true,
		EmailVerified: true,
	})
	if errors.Is(err, postgres.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("seeded admin account", zap.String("user_id", p.ID), zap.String("username", p.Username))
	return nil
}

type accountCreator interface {
	Create(ctx context.Context, in postgres.NewUser) (*insightx.Principal, error)
}

// registerWith creates active USER accounts that still need email
// verification before they can log in.
func registerWith(users accountCreator) httpapi.RegisterFunc {
	return func(ctx context.Context, in httpapi.Registration) (*insightx.Principal, error) {
		p, err := users.Create(ctx, postgres.NewUser{
			Username: in.Username,
			Email:    in.Email,
			Password: in.Password,
			Role:     insightx.RoleUser,
			Active:   true,
		})
		if errors.Is(err, postgres.ErrDuplicate) {
			return nil, httpapi.ErrAccountExists
		}
		return p, err
	}
}

func logSecurityReport(logger *zap.Logger, r insightx.SecurityReport) {
	logger.Info("authority ready",
		zap.String("alg", r.SigningAlgorithm),
		zap.Int("secret_bytes", r.SecretBytes),
		zap.String("issuer", r.Issuer),
		zap.Duration("access_ttl", r.AccessTTL),
		zap.Duration("refresh_ttl", r.RefreshTTL),
		zap.Duration("activity_window", r.ActivityWindow),
		zap.Duration("store_op_timeout", r.StoreOpTimeout),
		zap.Bool("login_throttle", r.LoginThrottle),
		zap.Bool("ip_throttle", r.IPThrottle),
		zap.Int("max_login_attempts", r.MaxLoginAttempts),
		zap.Bool("password_upgrade", r.PasswordUpgrade),
		zap.Bool("audit", r.AuditEnabled),
		zap.Bool("latency_histograms", r.LatencyHistograms),
	)
}
