// Package session keeps the two pieces of per-subject state the authority
// consults in Redis: the sliding activity record and the revocation
// blacklist.
//
// # Fail-open reads
//
// Reads never surface store errors. A Redis outage or a call that exceeds
// the per-operation timeout makes [ActivityTracker.IsActive] report active and
// [RevocationStore.IsRevoked] report not revoked; the event is logged and
// forwarded to the OnFailOpen hook. Writes return wrapped
// [ErrRedisUnavailable] errors and leave the decision to the caller.
//
// # Keys
//
//	<prefix>:act:<subject>      last activity, unix millis, PX window
//	<prefix>:rev:<sha256 hex>   "1", PX remaining token lifetime
//
// Both key families carry their own TTL so neither grows without bound.
//
// This package does not decode tokens or make authentication decisions.
package session
