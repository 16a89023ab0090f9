//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend a suite runs against.
type redisMode struct {
	name string
	// mr is set for the miniredis mode only, for tests that move time.
	mr    *miniredis.Miniredis
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the backends to test. miniredis is always available;
// a real Redis joins when REDIS_ADDR is set.
func redisModes(t *testing.T) []*redisMode {
	t.Helper()
	mini := &redisMode{name: "miniredis"}
	mini.setup = func(t *testing.T) redis.UniversalClient {
		t.Helper()
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis: %v", err)
		}
		mini.mr = mr
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
		return rdb
	}
	modes := []*redisMode{mini}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, &redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}
	return modes
}

type users struct {
	mu   sync.Mutex
	byID map[string]insightx.Principal
}

func newUsers(ps ...insightx.Principal) *users {
	u := &users{byID: map[string]insightx.Principal{}}
	for _, p := range ps {
		u.byID[p.ID] = p
	}
	return u
}

func (u *users) FindByID(_ context.Context, id string) (*insightx.Principal, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (u *users) FindByLogin(_ context.Context, login string) (*insightx.Principal, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.byID {
		if strings.EqualFold(p.Username, login) {
			return &p, nil
		}
	}
	return nil, nil
}

func (u *users) VerifyPassword(context.Context, *insightx.Principal, string) (bool, error) {
	return false, nil
}

var ada = insightx.Principal{ID: "u-ada", Username: "ada", Email: "ada@example.com", Role: insightx.RoleUser, Active: true, EmailVerified: true}

func integrationConfig(prefix string) insightx.Config {
	cfg := insightx.DefaultConfig()
	cfg.JWT.Secret = []byte("integration-suite-secret-0123456789")
	cfg.JWT.AccessTTL = 10 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Store.RedisPrefix = prefix
	return cfg
}

func newAuthority(t *testing.T, rdb redis.UniversalClient, cfg insightx.Config) *insightx.Authority {
	t.Helper()
	auth, err := insightx.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(newUsers(ada)).Build()
	if err != nil {
		t.Fatalf("build authority: %v", err)
	}
	t.Cleanup(auth.Close)
	return auth
}
