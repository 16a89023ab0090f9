package insightx

import (
	"context"
	"time"

	"github.com/Lionel-Logan/InsightX/jwt"
)

// Role is the closed set of roles a principal may hold.
type Role = jwt.Role

const (
	RoleUser  = jwt.RoleUser
	RoleAdmin = jwt.RoleAdmin
)

// Kind distinguishes access tokens from refresh tokens.
type Kind = jwt.Kind

const (
	KindAccess  = jwt.KindAccess
	KindRefresh = jwt.KindRefresh
)

// Claims is the decoded content of a validated token.
type Claims = jwt.Claims

// Principal is the user record the authority reads from a [UserStore].
// The core never writes it.
type Principal struct {
	ID            string
	Username      string
	Email         string
	Role          Role
	Active        bool
	EmailVerified bool
	PasswordHash  string
}

// TokenPair is the result of a successful Generate, Login or Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// UserStore is the persistence collaborator the authority and the request
// authenticator read principals from. FindByID and FindByLogin return
// (nil, nil) when nothing matches.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	FindByLogin(ctx context.Context, login string) (*Principal, error)
	VerifyPassword(ctx context.Context, principal *Principal, plaintext string) (bool, error)
}

// PasswordUpgrader is implemented by stores that accept rehashed
// passwords. When present, Login replaces hashes produced with weaker
// argon2 parameters.
type PasswordUpgrader interface {
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
