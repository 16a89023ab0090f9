package insightx

import (
	"time"

	"github.com/Lionel-Logan/InsightX/password"
)

// SecurityReport summarizes the effective policy of a built authority. The
// server logs it at startup; it never contains the secret.
type SecurityReport struct {
	SigningAlgorithm  string
	SecretBytes       int
	Issuer            string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	ActivityWindow    time.Duration
	Leeway            time.Duration
	StoreOpTimeout    time.Duration
	FailOpenReads     bool
	LoginThrottle     bool
	IPThrottle        bool
	MaxLoginAttempts  int
	LoginCooldown     time.Duration
	PasswordUpgrade   bool
	Argon2            password.Config
	AuditEnabled      bool
	MetricsEnabled    bool
	LatencyHistograms bool
}

// SecurityReport returns the effective policy.
func (a *Authority) SecurityReport() SecurityReport {
	if a == nil {
		return SecurityReport{}
	}
	c := a.config
	throttle := c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration > 0
	_, upgradable := a.users.(PasswordUpgrader)

	return SecurityReport{
		SigningAlgorithm:  "HS256",
		SecretBytes:       len(c.JWT.Secret),
		Issuer:            c.JWT.Issuer,
		AccessTTL:         c.JWT.AccessTTL,
		RefreshTTL:        c.JWT.RefreshTTL,
		ActivityWindow:    c.JWT.RefreshTTL,
		Leeway:            c.JWT.Leeway,
		StoreOpTimeout:    c.Store.OpTimeout,
		FailOpenReads:     true,
		LoginThrottle:     throttle,
		IPThrottle:        throttle && c.Security.EnableIPThrottle,
		MaxLoginAttempts:  c.Security.MaxLoginAttempts,
		LoginCooldown:     c.Security.LoginCooldownDuration,
		PasswordUpgrade:   upgradable && c.Security.UpgradePasswordOnLogin,
		Argon2:            c.Password,
		AuditEnabled:      c.Audit.Enabled,
		MetricsEnabled:    c.Metrics.Enabled,
		LatencyHistograms: c.Metrics.Enabled && c.Metrics.EnableLatencyHistograms,
	}
}
