// Package adapters connects the persistence layer to the application
// services. It converts row types to domain types and translates
// persistence sentinels into application errors.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/persistence"
)

// translate maps a persistence error onto the application's vocabulary.
// Anything other than a missing row is reported as a persistence failure.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", application.ErrPersistence, err)
	}
}

// EventRepository serves application.EventRepository for one tenant.
type EventRepository struct {
	repo   persistence.EventRepository
	userID int64
}

// NewEventRepository scopes repo to the given user.
func NewEventRepository(repo persistence.EventRepository, userID int64) *EventRepository {
	return &EventRepository{repo: repo, userID: userID}
}

var _ application.EventRepository = (*EventRepository)(nil)

func (a *EventRepository) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	row := toPersistenceEvent(event)
	row.UserID = a.userID
	created, err := a.repo.CreateEvent(ctx, row)
	if err != nil {
		return application.Event{}, translate(err)
	}
	return toApplicationEvent(created), nil
}

func (a *EventRepository) GetEvent(ctx context.Context, id int64) (application.Event, error) {
	row, err := a.repo.GetEvent(ctx, a.userID, id)
	if err != nil {
		return application.Event{}, translate(err)
	}
	return toApplicationEvent(row), nil
}

// UpdateEvent returns errors raised by mutate unchanged.
func (a *EventRepository) UpdateEvent(ctx context.Context, id int64, mutate func(application.Event) (application.Event, error)) (application.Event, error) {
	var mutateErr error
	updated, err := a.repo.UpdateEvent(ctx, a.userID, id, func(row persistence.Event) (persistence.Event, error) {
		next, err := mutate(toApplicationEvent(row))
		if err != nil {
			mutateErr = err
			return persistence.Event{}, err
		}
		return toPersistenceEvent(next), nil
	})
	if err != nil {
		if mutateErr != nil && errors.Is(err, mutateErr) {
			return application.Event{}, mutateErr
		}
		return application.Event{}, translate(err)
	}
	return toApplicationEvent(updated), nil
}

func (a *EventRepository) DeleteEvent(ctx context.Context, id int64) error {
	return translate(a.repo.DeleteEvent(ctx, a.userID, id))
}

func (a *EventRepository) ListEvents(ctx context.Context, query application.EventQuery) ([]application.Event, error) {
	rows, err := a.repo.ListEvents(ctx, a.userID, toPersistenceFilter(query))
	if err != nil {
		return nil, translate(err)
	}
	events := make([]application.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, toApplicationEvent(row))
	}
	return events, nil
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:              event.ID,
		UserID:          event.UserID,
		Title:           event.Title,
		Description:     event.Description,
		EventType:       string(event.Type),
		StartTime:       event.Start,
		EndTime:         event.End,
		Location:        event.Location,
		Participants:    append([]string(nil), event.Participants...),
		Status:          string(event.Status),
		ReminderMinutes: event.ReminderMinutes,
		IsAllDay:        event.AllDay,
		CreatedAt:       event.CreatedAt,
		UpdatedAt:       event.UpdatedAt,
	}
}

func toApplicationEvent(row persistence.Event) application.Event {
	participants := make([]string, 0, len(row.Participants))
	participants = append(participants, row.Participants...)
	return application.Event{
		ID:              row.ID,
		UserID:          row.UserID,
		Title:           row.Title,
		Description:     row.Description,
		Type:            application.EventType(row.EventType),
		Start:           row.StartTime,
		End:             row.EndTime,
		Location:        row.Location,
		Participants:    participants,
		Status:          application.EventStatus(row.Status),
		ReminderMinutes: row.ReminderMinutes,
		AllDay:          row.IsAllDay,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func toPersistenceFilter(query application.EventQuery) persistence.EventFilter {
	var filter persistence.EventFilter
	if v, ok := query.StartFrom.Get(); ok {
		filter.StartFrom = &v
	}
	if v, ok := query.StartBefore.Get(); ok {
		filter.StartBefore = &v
	}
	if v, ok := query.EndUntil.Get(); ok {
		filter.EndUntil = &v
	}
	if v, ok := query.Type.Get(); ok {
		s := string(v)
		filter.EventType = &s
	}
	if v, ok := query.Status.Get(); ok {
		s := string(v)
		filter.Status = &s
	}
	return filter
}

// SessionRepository serves application.SessionRepository.
type SessionRepository struct {
	repo persistence.SessionRepository
}

func NewSessionRepository(repo persistence.SessionRepository) *SessionRepository {
	return &SessionRepository{repo: repo}
}

var _ application.SessionRepository = (*SessionRepository)(nil)

func (a *SessionRepository) CreateSession(ctx context.Context, session application.Session) error {
	return translate(a.repo.CreateSession(ctx, persistence.Session(session)))
}

func (a *SessionRepository) GetSession(ctx context.Context, token string) (application.Session, error) {
	row, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, translate(err)
	}
	return application.Session(row), nil
}

func (a *SessionRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	return translate(a.repo.TouchSession(ctx, token, at))
}

func (a *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	return translate(a.repo.DeleteSession(ctx, token))
}

func (a *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	n, err := a.repo.DeleteExpiredSessions(ctx, reference)
	return n, translate(err)
}
