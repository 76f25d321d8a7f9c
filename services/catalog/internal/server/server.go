package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"smartimmo/internal/ratelimit"
	"smartimmo/internal/util"
	"smartimmo/pkg/domain"
	"smartimmo/services/catalog/internal/app"
	"smartimmo/services/catalog/internal/security"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                *app.App
	APIPrefix          string
	Environment        string
	CORSAllowedOrigins []string
	TrustedProxies     *util.TrustedProxies
	Alerter            *security.Alerter
	MaxUploadBytes     int64
	// Nil limiters allow every request.
	SignupLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter  *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the catalog service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	prefix         string
	environment    string
	corsOrigins    []string
	trustedProxies *util.TrustedProxies
	alerter        *security.Alerter
	maxUploadBytes int64
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		prefix:         strings.TrimRight(cfg.APIPrefix, "/"),
		environment:    cfg.Environment,
		corsOrigins:    cfg.CORSAllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		alerter:        cfg.Alerter,
		maxUploadBytes: cfg.MaxUploadBytes,
		signupLimiter:  cfg.SignupLimiter,
		loginLimiter:   cfg.LoginLimiter,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultUploadBytes
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("catalog",
		util.WithSecurityHeaders(s.trustedProxies, util.WithCORS(s.corsOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// properties
	s.handleCollection("GET", "/properties", s.handleListProperties)
	s.handleCollection("POST", "/properties", s.authenticated(s.handleCreateProperty))
	s.handle("GET", "/properties/{id}", s.handleGetProperty)
	s.handle("PUT", "/properties/{id}", s.authenticated(s.handleUpdateProperty))
	s.handle("DELETE", "/properties/{id}", s.authenticated(s.handleDeleteProperty))
	s.handle("POST", "/properties/{id}/images", s.authenticated(s.handleUploadImage))

	// favorites
	s.handleCollection("GET", "/favorites", s.authenticated(s.handleListFavorites))
	s.handle("POST", "/favorites/{propertyID}", s.authenticated(s.handleAddFavorite))
	s.handle("DELETE", "/favorites/{propertyID}", s.authenticated(s.handleRemoveFavorite))

	// users
	s.handleCollection("POST", "/users", s.handleSignup)
	s.handleCollection("GET", "/users", s.authenticated(s.handleListUsers))
	s.handle("POST", "/users/login", s.handleLogin)
	s.handle("POST", "/users/logout", s.handleLogout)
	s.handle("GET", "/users/me", s.authenticated(s.handleMe))
	s.handle("DELETE", "/users/me", s.authenticated(s.handleDeleteMe))

	// assistant
	s.handle("POST", "/ai/query", s.handleAsk)
}

func (s *Server) handle(method, path string, h http.HandlerFunc) {
	s.mux.HandleFunc(method+" "+s.prefix+path, h)
}

// handleCollection also serves the trailing-slash form of a collection path.
func (s *Server) handleCollection(method, path string, h http.HandlerFunc) {
	s.handle(method, path, h)
	s.handle(method, path+"/{$}", h)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": s.environment,
	})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "catalog.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		user, err := s.app.UserFromToken(r.Context(), token)
		if err != nil {
			s.audit(r, "catalog.authorize", "fail", "reason", app.KindName(err))
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trustedProxies)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security_alert_observe_failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"threshold", alert.Threshold,
			"window", alert.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate_limited", msg)
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrConflict), errors.Is(err, app.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var appErr *app.Error
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		util.LoggerFromContext(r.Context()).Error("request_failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeError(w, status, app.KindName(err), appErr.Message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
