package flows

import (
	"context"
	"time"

	"github.com/Lionel-Logan/InsightX/jwt"
)

// Principal mirrors the root principal type field for field so values
// convert without copying helpers.
type Principal struct {
	ID            string
	Username      string
	Email         string
	Role          jwt.Role
	Active        bool
	EmailVerified bool
	PasswordHash  string
}

// TokenPair mirrors the root token pair type.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuditFunc emits one audit event. metadata is only evaluated when audit is
// enabled.
type AuditFunc func(ctx context.Context, event string, success bool, userID, tokenID string, err error, metadata func() map[string]string)

// Metrics carries metric IDs used by the flows.
type Metrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	RefreshSuccess   int
	RefreshFailure   int
	Logout           int
}

// Events carries audit event names used by the flows.
type Events struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	RefreshSuccess   string
	RefreshFailure   string
	Logout           string
}

// Errors carries root-level sentinel errors so the flows return exactly
// what callers match with errors.Is.
type Errors struct {
	NotReady           error
	InvalidCredentials error
	LoginRateLimited   error
	AccountDisabled    error
	AccountUnverified  error
	TokenKind          error
	PrincipalNotFound  error
}

// accountError returns the sentinel for a principal that may not hold
// tokens, or nil.
func accountError(p *Principal, errs Errors) error {
	// An empty role is issued as USER; anything else outside the set cannot
	// be encoded into a token.
	if !p.Active || (p.Role != "" && !p.Role.Valid()) {
		return errs.AccountDisabled
	}
	if !p.EmailVerified {
		return errs.AccountUnverified
	}
	return nil
}
