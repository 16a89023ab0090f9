package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	insightx "github.com/Lionel-Logan/InsightX"
)

type errorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="insightx"`)
	}
	writeJSON(w, status, errorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
	})
}

// classify maps authority errors onto a status and a client-safe message.
// Expired and inactive tokens read the same so callers cannot probe the
// activity window.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, insightx.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, insightx.ErrLoginRateLimited):
		return http.StatusTooManyRequests, "too many login attempts"
	case errors.Is(err, insightx.ErrAccountDisabled):
		return http.StatusForbidden, "account disabled"
	case errors.Is(err, insightx.ErrAccountUnverified):
		return http.StatusForbidden, "email not verified"
	case errors.Is(err, insightx.ErrTokenExpired), errors.Is(err, insightx.ErrSubjectInactive):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, insightx.ErrTokenRevoked):
		return http.StatusUnauthorized, "token revoked"
	case errors.Is(err, insightx.ErrTokenMalformed),
		errors.Is(err, insightx.ErrTokenBadSignature),
		errors.Is(err, insightx.ErrTokenKind),
		errors.Is(err, insightx.ErrPrincipalNotFound):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, insightx.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "session store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
