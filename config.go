package insightx

import (
	"fmt"
	"strings"
	"time"

	"github.com/Lionel-Logan/InsightX/jwt"
	"github.com/Lionel-Logan/InsightX/password"
)

// Config holds every tunable of the authority. Start from [DefaultConfig]
// and override fields; [Config.Validate] runs inside [Builder.Build].
type Config struct {
	JWT      JWTConfig
	Store    StoreConfig
	Security SecurityConfig
	Password password.Config
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing and lifetimes. RefreshTTL doubles as
// the inactivity window: a subject not seen for RefreshTTL is inactive.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures the Redis-backed activity and revocation stores.
type StoreConfig struct {
	RedisPrefix string
	// OpTimeout bounds each Redis call; on timeout reads fail open.
	OpTimeout time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig configures login throttling.
type SecurityConfig struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	// UpgradePasswordOnLogin rehashes stored hashes that use weaker argon2
	// parameters when the store supports it.
	UpgradePasswordOnLogin bool
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. The secret is left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			RedisPrefix: "ix",
			OpTimeout:   250 * time.Millisecond,
		},
		Security: SecurityConfig{
			EnableIPThrottle:       true,
			MaxLoginAttempts:       5,
			LoginCooldownDuration:  15 * time.Minute,
			UpgradePasswordOnLogin: true,
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that would make the authority unsafe
// or unusable. Every failure is a *ConfigurationError.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < jwt.MinSecretBytes {
		return configErr("JWT.Secret", fmt.Sprintf("must be at least %d bytes, got %d", jwt.MinSecretBytes, len(c.JWT.Secret)))
	}
	if c.JWT.AccessTTL < time.Second {
		return configErr("JWT.AccessTTL", "must be at least 1s")
	}
	if c.JWT.RefreshTTL < time.Second {
		return configErr("JWT.RefreshTTL", "must be at least 1s")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configErr("JWT.Leeway", "must be between 0 and 2m")
	}
	if c.JWT.Issuer != strings.TrimSpace(c.JWT.Issuer) {
		return configErr("JWT.Issuer", "must not have surrounding whitespace")
	}

	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return configErr("Store.RedisPrefix", "must not be empty")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " \t\r\n") {
		return configErr("Store.RedisPrefix", "must not contain whitespace")
	}
	if c.Store.OpTimeout <= 0 {
		return configErr("Store.OpTimeout", "must be > 0")
	}

	if c.Security.MaxLoginAttempts < 0 {
		return configErr("Security.MaxLoginAttempts", "must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return configErr("Security.LoginCooldownDuration", "must be > 0 when MaxLoginAttempts is set")
	}

	if _, err := password.NewHasher(c.Password); err != nil {
		return configErr("Password", err.Error())
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configErr("Audit.BufferSize", "must be > 0 when audit is enabled")
	}

	return nil
}

func configErr(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
