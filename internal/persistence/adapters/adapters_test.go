package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/persistence"
	"github.com/example/calendar-manager/internal/persistence/memory"
	"github.com/example/calendar-manager/internal/persistence/sqlite"
)

func openEventRepository(t *testing.T) *EventRepository {
	t.Helper()
	ctx := context.Background()
	pool, err := sqlite.Open(ctx, sqlite.DefaultConfig(filepath.Join(t.TempDir(), "calendar.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, pool.Migrate(ctx, nil))
	return NewEventRepository(sqlite.NewEventRepository(pool, time.UTC), application.TenantUserID)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(persistence.ErrNotFound), application.ErrNotFound)
	assert.ErrorIs(t, translate(context.Canceled), context.Canceled)

	err := translate(persistence.ErrUnavailable)
	assert.ErrorIs(t, err, application.ErrPersistence)
	assert.ErrorIs(t, err, persistence.ErrUnavailable)
}

func TestEventRepository_RoundTrip(t *testing.T) {
	repo := openEventRepository(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	created, err := repo.CreateEvent(ctx, application.Event{
		Title:           "Standup",
		Type:            application.EventTypeMeeting,
		Start:           start,
		End:             start.Add(15 * time.Minute),
		Participants:    []string{},
		Status:          application.EventStatusScheduled,
		ReminderMinutes: 15,
		CreatedAt:       start,
		UpdatedAt:       start,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, application.TenantUserID, created.UserID)

	got, err := repo.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, application.EventTypeMeeting, got.Type)
	assert.NotNil(t, got.Participants)

	listed, err := repo.ListEvents(ctx, application.EventQuery{Type: mo.Some(application.EventTypeMeeting)})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = repo.GetEvent(ctx, 99)
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestEventRepository_UpdatePassesMutateErrorsThrough(t *testing.T) {
	repo := openEventRepository(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	created, err := repo.CreateEvent(ctx, application.Event{
		Title: "Standup", Type: application.EventTypeWork, Status: application.EventStatusScheduled,
		Start: start, End: start.Add(time.Hour), CreatedAt: start, UpdatedAt: start,
	})
	require.NoError(t, err)

	invalid := application.NewValidationError("start_time", "start_time must be earlier than end_time")
	_, err = repo.UpdateEvent(ctx, created.ID, func(application.Event) (application.Event, error) {
		return application.Event{}, invalid
	})
	var validation *application.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.NotErrorIs(t, err, application.ErrPersistence)

	_, err = repo.UpdateEvent(ctx, 404, func(e application.Event) (application.Event, error) { return e, nil })
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestSessionRepository_TranslatesMemoryStore(t *testing.T) {
	repo := NewSessionRepository(memory.NewSessionRepository())
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	session := application.Session{Token: "abc", UserID: 1, Username: "admin", CreatedAt: now, LastActivity: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.CreateSession(ctx, session))

	got, err := repo.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, err = repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, application.ErrNotFound)

	err = repo.CreateSession(ctx, session)
	assert.True(t, errors.Is(err, application.ErrPersistence))

	removed, err := repo.DeleteExpiredSessions(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
