package insightx

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lionel-Logan/InsightX/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("insightx-test-secret-0123456789ab")

func fastPasswordConfig() password.Config {
	return password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// memUserStore is an in-memory UserStore that also accepts rehashed
// passwords.
type memUserStore struct {
	mu       sync.Mutex
	hasher   *password.Hasher
	byID     map[string]*Principal
	upgrades map[string]string
	findErr  error
}

func newMemUserStore(t *testing.T) *memUserStore {
	t.Helper()
	hasher, err := password.NewHasher(fastPasswordConfig())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return &memUserStore{
		hasher:   hasher,
		byID:     map[string]*Principal{},
		upgrades: map[string]string{},
	}
}

func (s *memUserStore) add(t *testing.T, p Principal, plaintext string) *Principal {
	t.Helper()
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	p.PasswordHash = hash
	s.mu.Lock()
	s.byID[p.ID] = &p
	s.mu.Unlock()
	return &p
}

func (s *memUserStore) set(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.byID[p.ID]; ok && p.PasswordHash == "" {
		p.PasswordHash = cur.PasswordHash
	}
	s.byID[p.ID] = &p
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memUserStore) FindByLogin(_ context.Context, login string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, p := range s.byID {
		if strings.EqualFold(p.Username, login) || strings.EqualFold(p.Email, login) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) VerifyPassword(_ context.Context, p *Principal, plaintext string) (bool, error) {
	return s.hasher.Verify(plaintext, p.PasswordHash)
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upgrades[id] = hash
	if p, ok := s.byID[id]; ok {
		p.PasswordHash = hash
	}
	return nil
}

func (s *memUserStore) upgraded(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.upgrades[id]
	return h, ok
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.JWT.Issuer = "insightx-test"
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Store.RedisPrefix = "ixt"
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.LoginCooldownDuration = 10 * time.Minute
	cfg.Password = fastPasswordConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type testEnv struct {
	auth  *Authority
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	users *memUserStore
	clock *testClock
	alice *Principal
}

const alicePassword = "correct-horse-battery"

func newTestAuthority(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	mr, rdb := newTestRedis(t)
	users := newMemUserStore(t)
	clock := newTestClock()

	alice := users.add(t, Principal{
		ID:            "user-alice",
		Username:      "alice",
		Email:         "alice@example.com",
		Role:          RoleUser,
		Active:        true,
		EmailVerified: true,
	}, alicePassword)

	auth, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build authority: %v", err)
	}
	t.Cleanup(auth.Close)

	return &testEnv{auth: auth, mr: mr, rdb: rdb, users: users, clock: clock, alice: alice}
}
