// Package jwt encodes and decodes the signed bearer credentials issued by the
// authority. Tokens are HS256 JWTs carrying a typed kind claim so validators
// can apply kind-specific policy.
//
// Decoding is a pure function of the token string and the codec clock: it
// never touches a backing store, so a structurally invalid token fails the
// same way whether or not Redis is reachable.
package jwt
