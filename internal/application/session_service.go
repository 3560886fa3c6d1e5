package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/calendar-manager/internal/logging"
)

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	TouchSession(ctx context.Context, token string, at time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// TokenGenerator produces opaque session tokens.
type TokenGenerator func() (string, error)

// DefaultSessionTTL is the session lifetime used when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// GenerateToken returns 32 random bytes encoded as hex.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ClientInfo describes the client a session is issued to.
type ClientInfo struct {
	UserAgent string
	ClientIP  string
}

// SessionService issues, validates and revokes session tokens.
type SessionService struct {
	sessions       SessionRepository
	tokenGenerator TokenGenerator
	now            func() time.Time
	ttl            time.Duration
	logger         *slog.Logger
}

// NewSessionService constructs a SessionService with the default logger.
func NewSessionService(sessions SessionRepository, tokenGenerator TokenGenerator, now func() time.Time, ttl time.Duration) *SessionService {
	return NewSessionServiceWithLogger(sessions, tokenGenerator, now, ttl, nil)
}

// NewSessionServiceWithLogger constructs a SessionService with a specified logger.
func NewSessionServiceWithLogger(sessions SessionRepository, tokenGenerator TokenGenerator, now func() time.Time, ttl time.Duration, logger *slog.Logger) *SessionService {
	if tokenGenerator == nil {
		tokenGenerator = GenerateToken
	}
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		sessions:       sessions,
		tokenGenerator: tokenGenerator,
		now:            now,
		ttl:            ttl,
		logger:         defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// TTL is the lifetime of newly issued sessions.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// CreateSession issues a session for identity that expires after the TTL.
func (s *SessionService) CreateSession(ctx context.Context, identity Identity, client ClientInfo) (session Session, err error) {
	logger := s.loggerWith(ctx, "CreateSession", "username", identity.Username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session created", "token_prefix", logging.TokenPrefix(session.Token), "expires_at", session.ExpiresAt)
	}()

	token, err := s.tokenGenerator()
	if err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(token) == "" {
		return Session{}, errors.New("session token generator returned an empty token")
	}

	now := s.now()
	session = Session{
		Token:        token,
		UserID:       identity.UserID,
		Username:     identity.Username,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.ttl),
		UserAgent:    client.UserAgent,
		ClientIP:     client.ClientIP,
	}
	if err = s.sessions.CreateSession(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// ValidateSession reports whether token names a live session. It fails
// closed: unknown, expired and unreadable sessions are all invalid.
func (s *SessionService) ValidateSession(ctx context.Context, token string) bool {
	_, ok := s.lookup(ctx, token)
	return ok
}

// GetUser returns the identity behind a valid token.
func (s *SessionService) GetUser(ctx context.Context, token string) (Identity, bool) {
	session, ok := s.lookup(ctx, token)
	if !ok {
		return Identity{}, false
	}
	return session.Identity(), true
}

func (s *SessionService) lookup(ctx context.Context, token string) (Session, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, false
	}
	logger := s.loggerWith(ctx, "ValidateSession", "token_prefix", logging.TokenPrefix(token))

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.DebugContext(ctx, "unknown session token")
		} else {
			logger.ErrorContext(ctx, "session store unavailable, denying", "error", err, "error_kind", ErrorKind(err))
		}
		return Session{}, false
	}

	now := s.now()
	if !session.ValidAt(now) {
		logger.InfoContext(ctx, "session expired", "expires_at", session.ExpiresAt)
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			logger.WarnContext(ctx, "failed to remove expired session", "error", err)
		}
		return Session{}, false
	}

	if err := s.sessions.TouchSession(ctx, token, now); err != nil {
		logger.WarnContext(ctx, "failed to record session activity", "error", err)
	} else {
		session.LastActivity = now
	}
	return session, true
}

// DeleteSession revokes token. Unknown tokens are not an error.
func (s *SessionService) DeleteSession(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	logger := s.loggerWith(ctx, "DeleteSession", "token_prefix", logging.TokenPrefix(token))
	if err := s.sessions.DeleteSession(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		logger.ErrorContext(ctx, "session deletion failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session deleted")
	return nil
}

// PurgeExpired removes every session that expired before now.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.loggerWith(ctx, "PurgeExpired").WarnContext(ctx, "failed to purge expired sessions", "error", err)
		return 0, err
	}
	if removed > 0 {
		s.loggerWith(ctx, "PurgeExpired").InfoContext(ctx, "expired sessions purged", "count", removed)
	}
	return removed, nil
}
