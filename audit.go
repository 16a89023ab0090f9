package insightx

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/Lionel-Logan/InsightX/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant outcome emitted by the authority.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs audit events through zap.
type ZapSink = internalaudit.ZapSink

// Audit event types.
const (
	AuditLoginSuccess     = internalaudit.EventLoginSuccess
	AuditLoginFailure     = internalaudit.EventLoginFailure
	AuditLoginRateLimited = internalaudit.EventLoginRateLimited
	AuditRefreshSuccess   = internalaudit.EventRefreshSuccess
	AuditRefreshFailure   = internalaudit.EventRefreshFailure
	AuditLogout           = internalaudit.EventLogout
	AuditTokenRevoked     = internalaudit.EventTokenRevoked
	AuditRevokeFailure    = internalaudit.EventRevokeFailure
)

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewZapSink(logger *zap.Logger) *ZapSink { return internalaudit.NewZapSink(logger) }

func (a *Authority) emitAudit(ctx context.Context, eventType string, success bool, userID, tokenID string, err error, metadata func() map[string]string) {
	if a == nil || a.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: a.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	a.audit.Emit(ctx, event)
}

// AuditDropped returns the number of audit events discarded under
// backpressure.
func (a *Authority) AuditDropped() uint64 {
	if a == nil {
		return 0
	}
	return a.audit.Dropped()
}

func (a *Authority) now() time.Time {
	if a == nil || a.clock == nil {
		return time.Now()
	}
	return a.clock()
}
