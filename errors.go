package insightx

import (
	"errors"

	"github.com/Lionel-Logan/InsightX/jwt"
	"github.com/Lionel-Logan/InsightX/session"
)

// ConfigurationError reports a setting that prevents startup.
type ConfigurationError = jwt.ConfigurationError

var (
	// ErrTokenMalformed is returned for tokens that cannot be parsed or carry
	// unexpected claims.
	ErrTokenMalformed = jwt.ErrMalformed
	// ErrTokenBadSignature is returned when the signature does not verify.
	ErrTokenBadSignature = jwt.ErrBadSignature
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = jwt.ErrExpired
	// ErrTokenRevoked is returned for tokens on the revocation list.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSubjectInactive is returned for access tokens whose subject has not
	// been seen within the inactivity window.
	ErrSubjectInactive = errors.New("subject inactive")

	// ErrInvalidCredentials is returned by Login for an unknown login or a
	// wrong password; the two are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned by Login once the failed-attempt budget
	// for the identifier or client IP is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrAccountDisabled is returned for principals that are not active.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountUnverified is returned for principals without a verified
	// email.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrTokenKind is returned when a token of the wrong kind is presented,
	// such as an access token to Refresh.
	ErrTokenKind = errors.New("unexpected token kind")
	// ErrPrincipalNotFound is returned when a valid token names a subject the
	// user store no longer knows.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrAuthorityNotReady is returned when a method is called on a nil or
	// partially built authority.
	ErrAuthorityNotReady = errors.New("authority not ready")
)

// ErrStoreUnavailable wraps Redis failures surfaced by Revoke.
var ErrStoreUnavailable = session.ErrRedisUnavailable
