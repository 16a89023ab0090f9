// Package middleware adapts an insightx.Authority to net/http.
//
// [Authenticator.Handler] runs once per request. Paths on the public list
// pass straight through; everything else has its bearer token validated and,
// if the token is a live access token for an active and verified account, an
// [Identity] attached to the request context. The handler never rejects on
// its own. [RequireIdentity] and [RequireRole] make the authorization
// decision, answering 401 and 403.
//
// [RateLimit] applies a per-client-address fixed window and answers 429 with
// Retry-After. [ClientIP] records the peer address used by login throttling.
package middleware
