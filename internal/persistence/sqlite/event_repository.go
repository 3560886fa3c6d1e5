package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/calendar-manager/internal/persistence"
)

// StorageLayout is how event timestamps are stored: fixed-width UTC, so
// values sort lexically in time order whatever the configured zone.
const StorageLayout = "2006-01-02T15:04:05Z"

// wallClockLayout is read for rows written before times were kept in UTC.
const wallClockLayout = "2006-01-02T15:04:05"

const participantSeparator = ", "

const eventColumns = `id, user_id, title, description, event_type, start_time, end_time, location,
	participants, status, reminder_minutes, is_all_day, created_at, updated_at`

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool     *ConnectionPool
	location *time.Location
}

// NewEventRepository returns a repository that stores event times in UTC and
// returns them in loc. A nil loc means UTC.
func NewEventRepository(pool *ConnectionPool, loc *time.Location) *EventRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &EventRepository{pool: pool, location: loc}
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// CreateEvent inserts the event and returns it with the assigned id.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if err := validateEvent(event); err != nil {
		return persistence.Event{}, err
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO events (user_id, title, description, event_type, start_time, end_time, location,
				participants, status, reminder_minutes, is_all_day, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.UserID,
			event.Title,
			event.Description,
			event.EventType,
			r.formatTime(event.StartTime),
			r.formatTime(event.EndTime),
			event.Location,
			joinParticipants(event.Participants),
			event.Status,
			event.ReminderMinutes,
			boolToInt(event.IsAllDay),
			r.formatTime(event.CreatedAt),
			r.formatTime(event.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted event id: %w", err)
		}
		event.ID = id
		return nil
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return r.normalize(event), nil
}

// GetEvent loads one event owned by userID.
func (r *EventRepository) GetEvent(ctx context.Context, userID, id int64) (persistence.Event, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND user_id = ?`, id, userID)
	event, err := r.scanEvent(row)
	if err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

// UpdateEvent applies mutate to the stored row inside one transaction.
func (r *EventRepository) UpdateEvent(ctx context.Context, userID, id int64, mutate func(persistence.Event) (persistence.Event, error)) (persistence.Event, error) {
	var updated persistence.Event
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.scanEvent(tx.QueryRowContext(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = ? AND user_id = ?`, id, userID))
		if err != nil {
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.UserID = current.UserID
		next.CreatedAt = current.CreatedAt
		if err := validateEvent(next); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE events
			SET title = ?, description = ?, event_type = ?, start_time = ?, end_time = ?, location = ?,
				participants = ?, status = ?, reminder_minutes = ?, is_all_day = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			next.Title,
			next.Description,
			next.EventType,
			r.formatTime(next.StartTime),
			r.formatTime(next.EndTime),
			next.Location,
			joinParticipants(next.Participants),
			next.Status,
			next.ReminderMinutes,
			boolToInt(next.IsAllDay),
			r.formatTime(next.UpdatedAt),
			id,
			userID,
		)
		if err != nil {
			return mapError(err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return persistence.ErrNotFound
		}
		updated = r.normalize(next)
		return nil
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return updated, nil
}

// DeleteEvent removes the event. Deleting a missing event is not an error.
func (r *EventRepository) DeleteEvent(ctx context.Context, userID, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// ListEvents returns the user's events matching filter ordered by start
// time and id.
func (r *EventRepository) ListEvents(ctx context.Context, userID int64, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses = []string{"user_id = ?"}
		args    = []any{userID}
	)
	if filter.StartFrom != nil {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, r.formatTime(*filter.StartFrom))
	}
	if filter.StartBefore != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, r.formatTime(*filter.StartBefore))
	}
	if filter.EndUntil != nil {
		clauses = append(clauses, "end_time <= ?")
		args = append(args, r.formatTime(*filter.EndUntil))
	}
	if filter.EventType != nil {
		clauses = append(clauses, "event_type = ?")
		args = append(args, *filter.EventType)
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *filter.Status)
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY start_time ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *EventRepository) scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                                persistence.Event
		start, end, created, updated, people string
		allDay                               int
	)
	err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.Title,
		&event.Description,
		&event.EventType,
		&start,
		&end,
		&event.Location,
		&people,
		&event.Status,
		&event.ReminderMinutes,
		&allDay,
		&created,
		&updated,
	)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	for _, field := range []struct {
		name  string
		raw   string
		value *time.Time
	}{
		{"start_time", start, &event.StartTime},
		{"end_time", end, &event.EndTime},
		{"created_at", created, &event.CreatedAt},
		{"updated_at", updated, &event.UpdatedAt},
	} {
		parsed, err := r.parseTime(field.raw)
		if err != nil {
			return persistence.Event{}, fmt.Errorf("event %d: parse %s: %w", event.ID, field.name, err)
		}
		*field.value = parsed
	}
	event.Participants = splitParticipants(people)
	event.IsAllDay = allDay != 0
	return event, nil
}

func (r *EventRepository) formatTime(t time.Time) string {
	return t.UTC().Format(StorageLayout)
}

func (r *EventRepository) parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(StorageLayout, value); err == nil {
		return t.In(r.location), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(r.location), nil
	}
	// Legacy rows hold naive wall-clock values in the repository's zone.
	for _, layout := range []string{wallClockLayout, "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, r.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// normalize rounds times through the storage format so callers see what a
// subsequent read would return.
func (r *EventRepository) normalize(event persistence.Event) persistence.Event {
	for _, t := range []*time.Time{&event.StartTime, &event.EndTime, &event.CreatedAt, &event.UpdatedAt} {
		if parsed, err := r.parseTime(r.formatTime(*t)); err == nil {
			*t = parsed
		}
	}
	event.Participants = splitParticipants(joinParticipants(event.Participants))
	return event
}

func validateEvent(event persistence.Event) error {
	if strings.TrimSpace(event.Title) == "" {
		return fmt.Errorf("%w: title is empty", persistence.ErrConstraintViolation)
	}
	if !event.StartTime.Before(event.EndTime) {
		return fmt.Errorf("%w: start_time must precede end_time", persistence.ErrConstraintViolation)
	}
	return nil
}

func joinParticipants(participants []string) string {
	cleaned := make([]string, 0, len(participants))
	for _, p := range participants {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, participantSeparator)
}

func splitParticipants(value string) []string {
	participants := make([]string, 0)
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}
	return participants
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
