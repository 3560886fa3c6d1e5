package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"
)

// EventRepository captures the persistence interactions for calendar events.
// UpdateEvent runs read, mutate and write as one all-or-nothing unit.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, id int64, mutate func(Event) (Event, error)) (Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
}

const (
	defaultEventType       = EventTypeWork
	defaultEventStatus     = EventStatusScheduled
	defaultReminderMinutes = 15
	upcomingWindow         = 7 * 24 * time.Hour
)

// EventService implements calendar event use cases for the single tenant.
type EventService struct {
	events   EventRepository
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewEventService constructs an EventService with the default logger.
func NewEventService(events EventRepository, now func() time.Time, location *time.Location) *EventService {
	return NewEventServiceWithLogger(events, now, location, nil)
}

// NewEventServiceWithLogger constructs an EventService with a specified logger.
func NewEventServiceWithLogger(events EventRepository, now func() time.Time, location *time.Location, logger *slog.Logger) *EventService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.Local
	}
	return &EventService{
		events:   events,
		now:      now,
		location: location,
		logger:   defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// Location is the zone naive timestamps are interpreted in.
func (s *EventService) Location() *time.Location {
	return s.location
}

func (s *EventService) currentTime() time.Time {
	return s.now().In(s.location).Truncate(time.Second)
}

// Validate checks raw event input. See ValidateEventFields.
func (s *EventService) Validate(fields EventFields, isUpdate bool) (EventPatch, error) {
	return ValidateEventFields(fields, isUpdate, s.location)
}

// ParseFilter turns raw list filters into a repository query.
func (s *EventService) ParseFilter(input EventFilterInput) (EventQuery, error) {
	var (
		query EventQuery
		vErr  = &ValidationError{}
	)
	if v := strings.TrimSpace(input.Start); v != "" {
		t, err := ParseTimestamp(v, s.location)
		if err != nil {
			vErr.add("start", "start has an invalid time format")
		} else {
			query.StartFrom = mo.Some(t)
		}
	}
	if v := strings.TrimSpace(input.End); v != "" {
		t, err := ParseTimestamp(v, s.location)
		if err != nil {
			vErr.add("end", "end has an invalid time format")
		} else {
			query.EndUntil = mo.Some(t)
		}
	}
	if v := strings.TrimSpace(input.Type); v != "" {
		eventType, err := ParseEventType(v)
		if err != nil {
			vErr.add("type", msgTypeInvalid)
		} else {
			query.Type = mo.Some(eventType)
		}
	}
	if err := vErr.errOrNil(); err != nil {
		return EventQuery{}, err
	}
	return query, nil
}

// List returns the events matching the filters ordered by start time.
func (s *EventService) List(ctx context.Context, input EventFilterInput) ([]Event, error) {
	query, err := s.ParseFilter(input)
	if err != nil {
		s.loggerWith(ctx, "List", "error_kind", ErrorKind(err)).WarnContext(ctx, "event filter rejected", "error", err)
		return nil, err
	}
	return s.list(ctx, "List", query)
}

// ListToday returns the events starting within the current local day.
func (s *EventService) ListToday(ctx context.Context) ([]Event, error) {
	now := s.currentTime()
	year, month, day := now.Date()
	startOfDay := time.Date(year, month, day, 0, 0, 0, 0, s.location)
	return s.list(ctx, "ListToday", EventQuery{
		StartFrom:   mo.Some(startOfDay),
		StartBefore: mo.Some(startOfDay.AddDate(0, 0, 1)),
	})
}

// ListUpcoming returns scheduled events starting within the next seven days.
func (s *EventService) ListUpcoming(ctx context.Context) ([]Event, error) {
	now := s.currentTime()
	return s.list(ctx, "ListUpcoming", EventQuery{
		StartFrom:   mo.Some(now),
		StartBefore: mo.Some(now.Add(upcomingWindow)),
		Status:      mo.Some(EventStatusScheduled),
	})
}

func (s *EventService) list(ctx context.Context, operation string, query EventQuery) ([]Event, error) {
	events, err := s.events.ListEvents(ctx, query)
	if err != nil {
		s.loggerWith(ctx, operation, "error_kind", ErrorKind(err)).ErrorContext(ctx, "failed to list events", "error", err)
		return nil, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id int64) (Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		s.loggerWith(ctx, "Get", "event_id", id, "error_kind", ErrorKind(err)).WarnContext(ctx, "failed to load event", "error", err)
		return Event{}, err
	}
	return event, nil
}

// Create validates the input, applies defaults and persists a new event.
func (s *EventService) Create(ctx context.Context, fields EventFields) (event Event, err error) {
	logger := s.loggerWith(ctx, "Create")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event created", "event_id", event.ID)
	}()

	patch, err := s.Validate(fields, false)
	if err != nil {
		return Event{}, err
	}

	now := s.currentTime()
	draft := patch.Apply(Event{
		UserID:          TenantUserID,
		Type:            defaultEventType,
		Status:          defaultEventStatus,
		ReminderMinutes: defaultReminderMinutes,
		Participants:    []string{},
	})
	draft.CreatedAt = now
	draft.UpdatedAt = now

	return s.events.CreateEvent(ctx, draft)
}

// Update changes only the supplied fields and refreshes updated_at. When a
// single time field is supplied it is checked against the stored other one.
func (s *EventService) Update(ctx context.Context, id int64, fields EventFields) (event Event, err error) {
	logger := s.loggerWith(ctx, "Update", "event_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	patch, err := s.Validate(fields, true)
	if err != nil {
		return Event{}, err
	}

	now := s.currentTime()
	return s.events.UpdateEvent(ctx, id, func(current Event) (Event, error) {
		next := patch.Apply(current)
		if patch.TouchesTime() && !next.Start.Before(next.End) {
			return Event{}, NewValidationError("start_time", msgTimeOrder)
		}
		next.UpdatedAt = now
		return next, nil
	})
}

// Delete removes an event. Deleting an unknown id succeeds.
func (s *EventService) Delete(ctx context.Context, id int64) error {
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		s.loggerWith(ctx, "Delete", "event_id", id, "error_kind", ErrorKind(err)).ErrorContext(ctx, "event deletion failed", "error", err)
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	s.loggerWith(ctx, "Delete", "event_id", id).InfoContext(ctx, "event deleted")
	return nil
}
