package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix string
	// Timeout bounds each Redis call.
	Timeout time.Duration

	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldownWindow time.Duration

	MaxRequests   int
	RequestWindow time.Duration
}

// Limiter enforces fixed-window counters in Redis for failed logins and for
// per-client request rates. Its keys live in their own namespace and carry
// their own TTLs, independent of activity records.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		cfg.Prefix = "ix"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin checks whether the identifier and IP are within the failed
// login budget. Returns ErrRateLimited when either is exhausted.
func (l *Limiter) CheckLogin(ctx context.Context, login, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginUserKey(login), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt for the identifier and IP.
func (l *Limiter) IncrementLogin(ctx context.Context, login, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.loginUserKey(login), l.config.LoginCooldownWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginCooldownWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, login, ip string) error {
	keys := []string{l.loginUserKey(login)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}

	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// LoginAttempts returns the current failed-attempt counter for an
// identifier. Missing keys return zero.
func (l *Limiter) LoginAttempts(ctx context.Context, login string) (int, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	count, err := l.redis.Get(ctx, l.loginUserKey(login)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Decision is the outcome of a request-rate check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Allow counts one request for client and reports whether it fits in the
// current window. A non-positive MaxRequests allows everything.
func (l *Limiter) Allow(ctx context.Context, client string) (Decision, error) {
	limit := l.config.MaxRequests
	if limit <= 0 || l.config.RequestWindow <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	key := l.requestKey(client)
	count, err := l.incrementWithTTL(ctx, key, l.config.RequestWindow)
	if err != nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, err
	}

	d := Decision{Allowed: count <= int64(limit), Limit: limit}
	if remaining := int64(limit) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = l.ttl(ctx, key)
	}
	return d, nil
}

func (l *Limiter) ttl(ctx context.Context, key string) time.Duration {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return l.config.RequestWindow
	}
	return ttl
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set only by the first hit.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, l.config.Timeout)
}

func (l *Limiter) loginUserKey(login string) string {
	return l.config.Prefix + ":rl:login:" + strings.ToLower(strings.TrimSpace(login))
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":rl:loginip:" + ip
}

func (l *Limiter) requestKey(client string) string {
	return l.config.Prefix + ":rl:req:" + client
}
