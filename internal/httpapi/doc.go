// Package httpapi serves the /api/auth endpoints and the operational routes
// of the insightx-auth server on top of an [insightx.Authority].
package httpapi
