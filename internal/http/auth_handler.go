package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/logging"
)

type authService interface {
	Login(ctx context.Context, params application.LoginParams) (application.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler serves login, logout and session checks.
type AuthHandler struct {
	service      authService
	gate         *AuthGate
	secureCookie bool
	location     *time.Location
	responder    responder
	logger       *slog.Logger
}

// AuthHandlerOptions tune cookie and time rendering.
type AuthHandlerOptions struct {
	SecureCookie bool
	Location     *time.Location
	Now          func() time.Time
}

func NewAuthHandler(service authService, gate *AuthGate, opts AuthHandlerOptions, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &AuthHandler{
		service:      service,
		gate:         gate,
		secureCookie: opts.SecureCookie,
		location:     opts.Location,
		responder:    newResponder(base, opts.Now),
		logger:       base,
	}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expires_at"`
}

// Login checks the credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.log(ctx, "Login", "error_kind", "bad_request").WarnContext(ctx, "failed to decode login request", "error", err)
		h.responder.fail(ctx, w, http.StatusBadRequest, msgBadRequestBody)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		h.responder.fail(ctx, w, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.service.Login(ctx, application.LoginParams{
		Username: req.Username,
		Password: req.Password,
		Client:   clientInfo(r),
	})
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			h.responder.fail(ctx, w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		h.log(ctx, "Login").ErrorContext(ctx, "login failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err, msgInvalidCredentials)
		return
	}

	session := result.Session
	setSessionCookie(w, session.Token, session.ExpiresAt, h.secureCookie)
	w.Header().Set(sessionTokenHeader, session.Token)

	h.responder.respond(ctx, w, http.StatusOK, "login successful", loginResponse{
		Token:     session.Token,
		UserID:    result.Identity.UserID,
		Username:  result.Identity.Username,
		ExpiresAt: application.FormatTimestamp(session.ExpiresAt, h.location),
	})
}

// Logout revokes the presented session, if any, and expires the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if token := extractToken(r); token != "" {
		if err := h.service.Logout(ctx, token); err != nil {
			h.log(ctx, "Logout", "token_prefix", logging.TokenPrefix(token)).ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(ctx, w, err, "session not found")
			return
		}
	}

	clearSessionCookie(w, h.secureCookie)
	if identity, ok := IdentityFromContext(ctx); ok {
		h.log(ctx, "Logout", "user_id", identity.UserID, "username", identity.Username).InfoContext(ctx, "user logged out")
	}
	h.responder.respond(ctx, w, http.StatusOK, "logged out", nil)
}

// CheckSession always answers 200 and reports whether the caller is authenticated.
func (h *AuthHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := h.gate.Resolve(r)
	if !ok {
		h.responder.respond(ctx, w, http.StatusOK, "not authenticated", map[string]any{"authenticated": false})
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "authenticated", map[string]any{
		"authenticated": true,
		"username":      identity.Username,
		"user_id":       identity.UserID,
	})
}
