package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/middleware"
	"go.uber.org/zap"
)

const (
	maxBodyBytes      = 1 << 20
	minPasswordLength = 8
)

// ErrAccountExists is returned by a [RegisterFunc] when the username or
// email is already taken.
var ErrAccountExists = errors.New("username or email already registered")

// Sessions is the part of [insightx.Authority] the handlers drive.
type Sessions interface {
	Login(ctx context.Context, login, plaintext string) (insightx.TokenPair, *insightx.Principal, error)
	Refresh(ctx context.Context, refreshToken string) (insightx.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Registration is a validated sign-up request.
type Registration struct {
	Username string
	Email    string
	Password string
}

// RegisterFunc persists a new account. Accounts start unverified, so the
// caller must confirm the email before Login succeeds.
type RegisterFunc func(ctx context.Context, in Registration) (*insightx.Principal, error)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Options configures [New].
type Options struct {
	Logger *zap.Logger
	// Checks run on GET /health, keyed by dependency name.
	Checks map[string]Check
	// Metrics, when set, is mounted on GET /metrics.
	Metrics http.Handler
	// Register, when set, serves POST /api/auth/register.
	Register RegisterFunc
}

// Handler serves the auth API.
type Handler struct {
	sessions Sessions
	logger   *zap.Logger
	checks   map[string]Check
	metrics  http.Handler
	register RegisterFunc
}

func New(sessions Sessions, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		logger:   logger,
		checks:   opts.Checks,
		metrics:  opts.Metrics,
		register: opts.Register,
	}
}

// Routes registers every endpoint on a new mux. Identity is expected to be
// attached upstream by [middleware.Authenticator.Handler].
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	if h.register != nil {
		mux.HandleFunc("POST /api/auth/register", h.registerUser)
	}
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/refresh", h.refresh)
	mux.Handle("POST /api/auth/logout", middleware.RequireIdentity(http.HandlerFunc(h.logout)))
	mux.Handle("GET /api/auth/me", middleware.RequireIdentity(http.HandlerFunc(h.me)))
	mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
	return mux
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Region is accepted from older clients and not stored.
	Region string `json:"region,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

type authResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	TokenType    string        `json:"tokenType"`
	ExpiresIn    int64         `json:"expiresIn"`
	User         *userResponse `json:"user,omitempty"`
}

func newAuthResponse(pair insightx.TokenPair, p *insightx.Principal) authResponse {
	resp := authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(pair.AccessExpiresAt).Round(time.Second).Seconds()),
	}
	if p != nil {
		resp.User = newUserResponse(p)
	}
	return resp
}

func newUserResponse(p *insightx.Principal) *userResponse {
	return &userResponse{
		ID:            p.ID,
		Username:      p.Username,
		Email:         p.Email,
		Role:          string(p.Role),
		EmailVerified: p.EmailVerified,
	}
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	in := Registration{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	}
	if msg := validateRegistration(in); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	p, err := h.register(r.Context(), in)
	if errors.Is(err, ErrAccountExists) {
		writeError(w, r, http.StatusBadRequest, ErrAccountExists.Error())
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("user registered", zap.String("user_id", p.ID))
	writeJSON(w, http.StatusCreated, newUserResponse(p))
}

func validateRegistration(in Registration) string {
	switch {
	case in.Username == "" || strings.ContainsAny(in.Username, " \t\r\n@"):
		return "username is required and must not contain spaces or @"
	case len(in.Password) < minPasswordLength:
		return "password must be at least 8 characters"
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return "email is invalid"
	}
	return ""
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	login := strings.TrimSpace(req.UsernameOrEmail)
	if login == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "usernameOrEmail and password are required")
		return
	}

	pair, p, err := h.sessions.Login(r.Context(), login, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(pair, p))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refreshToken is required")
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(pair, nil))
}

// logout revokes the presented access token and, when the body names one,
// the refresh token.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.BearerToken(r)

	var req refreshRequest
	if err := decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.sessions.Logout(r.Context(), access, strings.TrimSpace(req.RefreshToken)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{
		ID:            id.Subject,
		Username:      id.Username,
		Email:         id.Email,
		Role:          string(id.Role),
		EmailVerified: true,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = "DOWN"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "UP"
	}

	overall := "UP"
	if status != http.StatusOK {
		overall = "DOWN"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("auth request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, r, status, message)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
