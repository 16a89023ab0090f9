package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretBytes is the smallest accepted HMAC secret (256 bits).
const MinSecretBytes = 32

// Kind distinguishes access credentials from refresh credentials.
type Kind string

const (
	// KindAccess marks a short-lived credential presented on every request.
	KindAccess Kind = "access"
	// KindRefresh marks a long-lived credential exchanged for a new pair.
	KindRefresh Kind = "refresh"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Role is the closed set of roles an access token may carry.
type Role string

const (
	// RoleUser is the default role.
	RoleUser Role = "USER"
	// RoleAdmin grants administrative access.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	// ErrMalformed is returned for tokens that cannot be parsed or carry
	// claims outside the accepted shape.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the token is past its exp claim.
	ErrExpired = errors.New("token expired")
)

// ConfigurationError reports a codec or authority setting that makes the
// process unable to start.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config holds codec settings.
type Config struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// Claims is the decoded, typed content of a token. Username, Email and Role
// are only populated for access tokens.
type Claims struct {
	Subject   string
	Kind      Kind
	Username  string
	Email     string
	Role      Role
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a single symmetric secret.
// It is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a codec. A secret shorter than
// MinSecretBytes yields a *ConfigurationError.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, &ConfigurationError{
			Field:  "secret",
			Reason: fmt.Sprintf("must be at least %d bytes, got %d", MinSecretBytes, len(cfg.Secret)),
		}
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, &ConfigurationError{Field: "leeway", Reason: "must be between 0 and 2m"}
	}

	c := &Codec{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		now:    cfg.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
		// Non-canonical base64 would give one signature several spellings.
		jwt.WithStrictDecoding(),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(options...)

	return c, nil
}

// Encode signs claims as a token of the given kind that expires after ttl.
// Subject, IssuedAt, ExpiresAt and ID on the input are ignored or
// overwritten; refresh tokens drop the identity claims.
func (c *Codec) Encode(claims Claims, kind Kind, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", errors.New("token ttl must be at least one second")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token subject is required")
	}

	now := c.now()
	wire := wireClaims{
		Type: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
		},
	}

	switch kind {
	case KindAccess:
		if !claims.Role.Valid() {
			return "", fmt.Errorf("unsupported role %q", claims.Role)
		}
		wire.Username = claims.Username
		wire.Email = claims.Email
		wire.Role = string(claims.Role)
	case KindRefresh:
	default:
		return "", fmt.Errorf("unsupported token kind %q", kind)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Decode verifies token and returns its claims. Failures are always one of
// ErrMalformed, ErrBadSignature or ErrExpired (wrapped with detail).
func (c *Codec) Decode(token string) (*Claims, error) {
	wire := &wireClaims{}
	parsed, err := c.parser.ParseWithClaims(token, wire, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}

	claims := &Claims{
		Subject:  wire.Subject,
		Kind:     Kind(wire.Type),
		Username: wire.Username,
		Email:    wire.Email,
		Role:     Role(wire.Role),
		ID:       wire.ID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}

	if err := checkShape(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Remaining returns how long claims stay valid at the codec clock.
func (c *Codec) Remaining(claims *Claims) time.Duration {
	if claims == nil {
		return 0
	}
	return claims.ExpiresAt.Sub(c.now())
}

func checkShape(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	if claims.IssuedAt.IsZero() || !claims.ExpiresAt.After(claims.IssuedAt) {
		return fmt.Errorf("%w: exp must follow iat", ErrMalformed)
	}
	switch claims.Kind {
	case KindAccess:
		if !claims.Role.Valid() {
			return fmt.Errorf("%w: unexpected role %q", ErrMalformed, claims.Role)
		}
	case KindRefresh:
	default:
		return fmt.Errorf("%w: unexpected type %q", ErrMalformed, claims.Kind)
	}
	return nil
}

// classify maps parser errors onto the three codec failures. Signature
// verification runs before claim validation, so an expired token with a bad
// signature reports ErrBadSignature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
