package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/calendar-manager/internal/logging"
)

// FailoverSessionRepository answers from a process-local fallback whenever
// the primary store reports a persistence failure. Sessions written to the
// fallback are lost on restart; the fallback keeps logins available, it is
// not a consistency guarantee.
type FailoverSessionRepository struct {
	primary  SessionRepository
	fallback SessionRepository
	logger   *slog.Logger
}

// NewFailoverSessionRepository wraps primary with fallback.
func NewFailoverSessionRepository(primary, fallback SessionRepository, logger *slog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   defaultLogger(logger),
	}
}

func (f *FailoverSessionRepository) degraded(ctx context.Context, operation string, err error) {
	serviceLogger(ctx, f.logger, "FailoverSessionRepository", operation).
		WarnContext(ctx, "primary session store unavailable, using in-memory fallback", "error", err)
}

func (f *FailoverSessionRepository) CreateSession(ctx context.Context, session Session) error {
	err := f.primary.CreateSession(ctx, session)
	if err == nil || !errors.Is(err, ErrPersistence) {
		return err
	}
	f.degraded(ctx, "CreateSession", err)
	return f.fallback.CreateSession(ctx, session)
}

// GetSession consults the fallback when the primary errors or does not know
// the token, since the token may have been issued during an outage.
func (f *FailoverSessionRepository) GetSession(ctx context.Context, token string) (Session, error) {
	session, err := f.primary.GetSession(ctx, token)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, ErrNotFound):
		return f.fallback.GetSession(ctx, token)
	case errors.Is(err, ErrPersistence):
		f.degraded(ctx, "GetSession", err)
		return f.fallback.GetSession(ctx, token)
	default:
		return Session{}, err
	}
}

func (f *FailoverSessionRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	primaryErr := f.primary.TouchSession(ctx, token, at)
	if primaryErr == nil {
		return nil
	}
	if err := f.fallback.TouchSession(ctx, token, at); err == nil {
		return nil
	}
	return primaryErr
}

// DeleteSession removes the token from both stores.
func (f *FailoverSessionRepository) DeleteSession(ctx context.Context, token string) error {
	primaryErr := f.primary.DeleteSession(ctx, token)
	fallbackErr := f.fallback.DeleteSession(ctx, token)
	if primaryErr != nil && !errors.Is(primaryErr, ErrNotFound) {
		serviceLogger(ctx, f.logger, "FailoverSessionRepository", "DeleteSession", "token_prefix", logging.TokenPrefix(token)).
			ErrorContext(ctx, "durable session could not be deleted", "error", primaryErr)
		return primaryErr
	}
	if fallbackErr != nil && !errors.Is(fallbackErr, ErrNotFound) {
		return fallbackErr
	}
	return nil
}

func (f *FailoverSessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	fromFallback, fallbackErr := f.fallback.DeleteExpiredSessions(ctx, reference)
	fromPrimary, primaryErr := f.primary.DeleteExpiredSessions(ctx, reference)
	return fromPrimary + fromFallback, errors.Join(primaryErr, fallbackErr)
}
