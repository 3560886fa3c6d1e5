package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/calendar-manager/internal/persistence"
)

const sessionTimeLayout = time.RFC3339Nano

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

var _ persistence.SessionRepository = (*SessionRepository)(nil)

// CreateSession stores a new session keyed by its token.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("%w: session token is empty", persistence.ErrConstraintViolation)
	}
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, username, created_at, last_activity, expires_at, user_agent, client_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.Token,
		session.UserID,
		session.Username,
		formatSessionTime(session.CreatedAt),
		formatSessionTime(session.LastActivity),
		formatSessionTime(session.ExpiresAt),
		session.UserAgent,
		session.ClientIP,
	)
	return mapError(err)
}

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if strings.TrimSpace(token) == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var (
		session                        persistence.Session
		created, lastActivity, expires string
	)
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT token, user_id, username, created_at, last_activity, expires_at, user_agent, client_ip
		FROM sessions WHERE token = ?`, token).Scan(
		&session.Token,
		&session.UserID,
		&session.Username,
		&created,
		&lastActivity,
		&expires,
		&session.UserAgent,
		&session.ClientIP,
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}

	if session.CreatedAt, err = time.Parse(sessionTimeLayout, created); err != nil {
		return persistence.Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	if session.LastActivity, err = time.Parse(sessionTimeLayout, lastActivity); err != nil {
		return persistence.Session{}, fmt.Errorf("parse last_activity: %w", err)
	}
	if session.ExpiresAt, err = time.Parse(sessionTimeLayout, expires); err != nil {
		return persistence.Session{}, fmt.Errorf("parse expires_at: %w", err)
	}
	return session, nil
}

// TouchSession records activity on an existing session.
func (r *SessionRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE token = ?`, formatSessionTime(at), token)
	if err != nil {
		return mapError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.pool.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return mapError(err)
}

// DeleteExpiredSessions removes every session whose expiry is at or before
// reference and reports how many were removed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	var removed int64
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT token, expires_at FROM sessions`)
		if err != nil {
			return mapError(err)
		}
		var expired []string
		for rows.Next() {
			var token, expires string
			if err := rows.Scan(&token, &expires); err != nil {
				rows.Close()
				return mapError(err)
			}
			at, err := time.Parse(sessionTimeLayout, expires)
			if err != nil || !at.After(reference) {
				expired = append(expired, token)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return mapError(err)
		}
		rows.Close()

		for _, token := range expired {
			result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
			if err != nil {
				return mapError(err)
			}
			if n, err := result.RowsAffected(); err == nil {
				removed += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func formatSessionTime(t time.Time) string {
	return t.UTC().Format(sessionTimeLayout)
}
