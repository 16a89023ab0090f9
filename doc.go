// Package insightx is the token authentication core of InsightX.
//
// An [Authority] issues HS256 access and refresh tokens and validates them
// under three independent constraints:
//
//   - cryptographic validity and natural expiry ([jwt.Codec])
//   - a sliding inactivity window kept per subject in Redis
//   - an explicit revocation list kept in Redis
//
// Validation order is revocation, then decode, then (access tokens only)
// the activity check followed by a re-touch. Every rejection maps to one
// [TokenState] through [StateOf].
//
// # Degraded mode
//
// Redis reads are bounded by Config.Store.OpTimeout and fail open: an
// unreachable store reads as "not revoked" and "active". The signature and
// expiry checks never depend on Redis, so a forged or expired token is
// rejected regardless of store health. Fail-open events are logged with zap
// at Warn and counted as [MetricStoreFailOpen].
//
// # Flows
//
// [Authority.Login], [Authority.Refresh] and [Authority.Logout] layer the
// credential flows on top of Generate/Validate/Revoke, reading principals
// from a caller-supplied [UserStore].
//
// Build an authority with [New]:
//
//	auth, err := insightx.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserStore(users).
//		WithLogger(logger).
//		Build()
package insightx
