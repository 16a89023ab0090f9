package middleware

import (
	"context"
	"net/http"

	insightx "github.com/Lionel-Logan/InsightX"
	"go.uber.org/zap"
)

// DefaultPublicPaths are served without an authentication attempt. Matching
// is exact.
var DefaultPublicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/verify-email",
	"/api/auth/resend-verification",
	"/api/auth/refresh",
	"/health",
	"/v3/api-docs",
	"/swagger-ui",
}

// TokenValidator is the part of [insightx.Authority] the authenticator
// needs.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*insightx.Claims, error)
}

// PrincipalFinder resolves a subject to its current account record.
type PrincipalFinder interface {
	FindByID(ctx context.Context, id string) (*insightx.Principal, error)
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Subject  string
	Username string
	Email    string
	Role     insightx.Role
	TokenID  string
}

// Options configures an [Authenticator].
type Options struct {
	// PublicPaths replaces DefaultPublicPaths when non-nil.
	PublicPaths []string
	Logger      *zap.Logger
}

// Authenticator establishes the caller identity for each request. It never
// rejects a request itself; handlers that need an identity wrap themselves
// with [RequireIdentity].
type Authenticator struct {
	tokens TokenValidator
	users  PrincipalFinder
	public map[string]struct{}
	logger *zap.Logger
}

// NewAuthenticator returns an authenticator backed by tokens and users.
func NewAuthenticator(tokens TokenValidator, users PrincipalFinder, opts Options) *Authenticator {
	paths := opts.PublicPaths
	if paths == nil {
		paths = DefaultPublicPaths
	}
	public := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		public[p] = struct{}{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		tokens: tokens,
		users:  users,
		public: public,
		logger: logger.Named("authenticator"),
	}
}

// IsPublic reports whether path skips authentication.
func (a *Authenticator) IsPublic(path string) bool {
	_, ok := a.public[path]
	return ok
}

// Authenticate resolves the identity carried by r. A missing or rejected
// token, a refresh token, an unknown subject, an inactive or unverified
// account, and any panic all yield no identity.
func (a *Authenticator) Authenticate(r *http.Request) (id *Identity, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("authentication panicked", zap.Any("panic", rec), zap.String("path", r.URL.Path))
			id, ok = nil, false
		}
	}()

	token, present := bearerToken(r.Header.Get("Authorization"))
	if !present {
		return nil, false
	}

	claims, err := a.tokens.Validate(r.Context(), token)
	if err != nil {
		a.logger.Debug("bearer token rejected", zap.Stringer("state", insightx.StateOf(err)))
		return nil, false
	}
	if claims.Kind != insightx.KindAccess {
		return nil, false
	}

	p, err := a.users.FindByID(r.Context(), claims.Subject)
	if err != nil {
		a.logger.Warn("principal lookup failed", zap.String("subject", claims.Subject), zap.Error(err))
		return nil, false
	}
	if p == nil || !p.Active || !p.EmailVerified {
		return nil, false
	}

	return &Identity{
		Subject:  p.ID,
		Username: p.Username,
		Email:    p.Email,
		Role:     claims.Role,
		TokenID:  claims.ID,
	}, true
}

// Handler attaches the identity, when one is established, and always calls
// next.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if id, ok := a.Authenticate(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
