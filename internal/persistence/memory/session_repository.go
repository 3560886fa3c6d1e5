// Package memory keeps session state in process memory. It backs the
// session store when SQLite is not used and serves as the fallback when
// the primary store is unavailable. Contents do not survive a restart.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/calendar-manager/internal/persistence"
)

// SessionRepository is a token-keyed session map guarded by a RWMutex.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]persistence.Session
}

// NewSessionRepository returns an empty store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]persistence.Session)}
}

var _ persistence.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("%w: session token is empty", persistence.ErrConstraintViolation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.Token]; exists {
		return persistence.ErrDuplicate
	}
	r.sessions[session.Token] = session
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Session{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *SessionRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[token]
	if !ok {
		return persistence.ErrNotFound
	}
	session.LastActivity = at
	r.sessions[token] = session
	return nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
	return nil
}

// DeleteExpiredSessions drops sessions whose expiry is at or before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for token, session := range r.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed, nil
}
