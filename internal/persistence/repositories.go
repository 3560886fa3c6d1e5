package persistence

import (
	"context"
	"time"
)

// EventRepository stores calendar events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, userID, id int64) (Event, error)
	// UpdateEvent loads the row, passes it to mutate and writes the result in
	// one transaction. An error from mutate aborts the update unchanged.
	UpdateEvent(ctx context.Context, userID, id int64, mutate func(Event) (Event, error)) (Event, error)
	// DeleteEvent succeeds when the row does not exist.
	DeleteEvent(ctx context.Context, userID, id int64) error
	// ListEvents orders by start time, then id.
	ListEvents(ctx context.Context, userID int64, filter EventFilter) ([]Event, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	TouchSession(ctx context.Context, token string, at time.Time) error
	// DeleteSession succeeds when the token does not exist.
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}
