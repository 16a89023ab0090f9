package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore is a blacklist of revoked token strings. Entries expire
// with the token they cover.
type RevocationStore struct {
	redis redis.UniversalClient
	opts  Options
}

// NewRevocationStore returns a store bound to rdb.
func NewRevocationStore(rdb redis.UniversalClient, opts Options) *RevocationStore {
	return &RevocationStore{redis: rdb, opts: opts.normalize()}
}

func (s *RevocationStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.opts.Prefix + ":rev:" + hex.EncodeToString(sum[:])
}

// Revoke blacklists token for remaining. Non-positive remaining is a no-op:
// the token is already dead.
func (s *RevocationStore) Revoke(ctx context.Context, token string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}

	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(token), 1, remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether token is blacklisted. Store errors report false.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) bool {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.key(token)).Result()
	if err != nil {
		s.opts.failOpen("revocation_check", err)
		return false
	}
	return n > 0
}
