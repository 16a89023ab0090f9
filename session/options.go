package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRedisUnavailable wraps every store error returned from a write.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultTimeout bounds each Redis call when Options.Timeout is unset.
const DefaultTimeout = 250 * time.Millisecond

// DefaultPrefix namespaces keys when Options.Prefix is unset.
const DefaultPrefix = "ix"

// Options configures both stores.
type Options struct {
	Prefix  string
	Timeout time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
	// ActivityRetention is how long an activity record is kept. Values
	// shorter than the window are raised to the window.
	ActivityRetention time.Duration
	// OnFailOpen is called with the operation name whenever a read falls
	// back to its permissive default.
	OnFailOpen func(op string)
}

func (o Options) normalize() Options {
	o.Prefix = strings.TrimSpace(o.Prefix)
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.OnFailOpen == nil {
		o.OnFailOpen = func(string) {}
	}
	return o
}

func (o Options) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, o.Timeout)
}

func (o Options) failOpen(op string, err error, fields ...zap.Field) {
	o.Logger.Warn("session store unavailable, failing open",
		append(fields, zap.String("op", op), zap.Error(err))...)
	o.OnFailOpen(op)
}
