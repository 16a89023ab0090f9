package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ActivityTracker records when each subject was last seen and answers
// whether the subject is still inside its inactivity window.
type ActivityTracker struct {
	redis     redis.UniversalClient
	window    time.Duration
	retention time.Duration
	opts      Options
}

// NewActivityTracker returns a tracker for the given window. Records live
// for the window unless opts.ActivityRetention is longer.
func NewActivityTracker(rdb redis.UniversalClient, window time.Duration, opts Options) *ActivityTracker {
	opts = opts.normalize()
	retention := opts.ActivityRetention
	if retention < window {
		retention = window
	}
	return &ActivityTracker{
		redis:     rdb,
		window:    window,
		retention: retention,
		opts:      opts,
	}
}

// Window returns the configured inactivity window.
func (t *ActivityTracker) Window() time.Duration {
	return t.window
}

func (t *ActivityTracker) key(subject string) string {
	return t.opts.Prefix + ":act:" + subject
}

// Touch stores the current time as the subject's last activity. Concurrent
// touches are last-write-wins. A store failure is logged and returned.
func (t *ActivityTracker) Touch(ctx context.Context, subject string) error {
	ctx, cancel := t.opts.bound(ctx)
	defer cancel()

	now := t.opts.Now().UnixMilli()
	if err := t.redis.Set(ctx, t.key(subject), now, t.retention).Err(); err != nil {
		t.opts.Logger.Warn("activity touch failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsActive reports whether subject was seen within the window. A missing
// record and any store error both count as active.
func (t *ActivityTracker) IsActive(ctx context.Context, subject string) bool {
	ctx, cancel := t.opts.bound(ctx)
	defer cancel()

	raw, err := t.redis.Get(ctx, t.key(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		t.opts.failOpen("activity_check", err, zap.String("subject", subject))
		return true
	}

	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		t.opts.failOpen("activity_check", fmt.Errorf("corrupt activity record %q", raw), zap.String("subject", subject))
		return true
	}
	return t.opts.Now().Sub(time.UnixMilli(last)) < t.window
}

// LastSeen returns the stored activity time. ok is false when no record
// exists.
func (t *ActivityTracker) LastSeen(ctx context.Context, subject string) (time.Time, bool, error) {
	ctx, cancel := t.opts.bound(ctx)
	defer cancel()

	last, err := t.redis.Get(ctx, t.key(subject)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.UnixMilli(last), true, nil
}
