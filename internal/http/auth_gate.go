package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/logging"
)

const (
	sessionCookieName  = "session_token"
	sessionTokenHeader = "X-Session-Token"
	apiPathPrefix      = "/api/"
	basicChallenge     = `Basic realm="Restricted Access"`
)

// SessionResolver resolves a session token to its identity.
type SessionResolver interface {
	GetUser(ctx context.Context, token string) (application.Identity, bool)
}

// CredentialChecker verifies static username/password credentials.
type CredentialChecker interface {
	CheckCredentials(ctx context.Context, username, password string) (application.Identity, error)
}

// AuthGate decides whether a request is authenticated. A session token is
// tried first, then HTTP Basic credentials against the admin account.
type AuthGate struct {
	sessions    SessionResolver
	credentials CredentialChecker
	loginPath   string
	responder   responder
	logger      *slog.Logger
}

// NewAuthGate builds a gate. credentials may be nil to disable Basic auth.
func NewAuthGate(sessions SessionResolver, credentials CredentialChecker, loginPath string, logger *slog.Logger) *AuthGate {
	if loginPath == "" {
		loginPath = "/login.html"
	}
	base := defaultLogger(logger)
	return &AuthGate{
		sessions:    sessions,
		credentials: credentials,
		loginPath:   loginPath,
		responder:   newResponder(base, nil),
		logger:      base,
	}
}

// Resolve returns the caller's identity when the request authenticates.
func (g *AuthGate) Resolve(r *http.Request) (application.Identity, bool) {
	ctx := r.Context()
	if token := extractToken(r); token != "" && g.sessions != nil {
		if identity, ok := g.sessions.GetUser(ctx, token); ok {
			return identity, true
		}
		handlerLogger(ctx, g.logger, "AuthGate", "Resolve").DebugContext(ctx, "session token rejected", "token_prefix", logging.TokenPrefix(token))
	}

	if username, password, ok := r.BasicAuth(); ok && g.credentials != nil {
		identity, err := g.credentials.CheckCredentials(ctx, username, password)
		if err == nil {
			return identity, true
		}
		handlerLogger(ctx, g.logger, "AuthGate", "Resolve").WarnContext(ctx, "basic credentials rejected", "username", username)
	}
	return application.Identity{}, false
}

// IsAuthenticated reports whether Resolve succeeds.
func (g *AuthGate) IsAuthenticated(r *http.Request) bool {
	_, ok := g.Resolve(r)
	return ok
}

// RequireAuth admits authenticated requests with their identity in the
// context. Denied API requests get a 401 envelope with a redirect hint and,
// when Basic auth is enabled, a Basic challenge. Page requests are
// redirected to the login page.
func (g *AuthGate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := g.Resolve(r)
		if ok {
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
			return
		}

		ctx := r.Context()
		handlerLogger(ctx, g.logger, "AuthGate", "RequireAuth", "error_kind", "unauthorized").InfoContext(ctx, "request denied")

		if strings.HasPrefix(r.URL.Path, apiPathPrefix) {
			if g.credentials != nil {
				w.Header().Set("WWW-Authenticate", basicChallenge)
			}
			g.responder.respond(ctx, w, http.StatusUnauthorized, msgAuthRequired, map[string]string{"redirect": g.loginPath})
			return
		}
		http.Redirect(w, r, g.loginPath+"?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
	})
}

// extractToken reads the session token from the bearer header, the
// X-Session-Token header or the session cookie, in that order.
func extractToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		const prefix = "bearer "
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			if token := strings.TrimSpace(header[len(prefix):]); token != "" {
				return token
			}
		}
	}
	if token := strings.TrimSpace(r.Header.Get(sessionTokenHeader)); token != "" {
		return token
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// clientInfo describes the caller for session bookkeeping. The client IP is
// the first X-Forwarded-For hop when present.
func clientInfo(r *http.Request) application.ClientInfo {
	ip := ""
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	return application.ClientInfo{UserAgent: r.UserAgent(), ClientIP: ip}
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
