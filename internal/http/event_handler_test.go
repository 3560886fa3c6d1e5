package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/calendarexport"
	"github.com/example/calendar-manager/internal/testfixtures"
)

// Wednesday 2025-01-15 09:00 UTC.
var eventClockStart = time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)

func newEventServer(t *testing.T) (*testServer, string) {
	t.Helper()
	srv := newTestServer(t, testfixtures.StackOptions{Start: eventClockStart})
	return srv, srv.login(t)
}

func createEvent(t *testing.T, srv *testServer, token string, body map[string]any) eventDTO {
	t.Helper()
	rec := srv.request(http.MethodPost, "/api/events", token, jsonBody(t, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dto eventDTO
	decodeData(t, decodeEnvelope(t, rec), &dto)
	return dto
}

func listEvents(t *testing.T, srv *testServer, token, target string) []eventDTO {
	t.Helper()
	rec := srv.request(http.MethodGet, target, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dtos []eventDTO
	decodeData(t, decodeEnvelope(t, rec), &dtos)
	return dtos
}

func TestCreateAndGetEvent(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)

	rec := srv.request(http.MethodPost, "/api/events", token, strings.NewReader(
		`{"title":"Standup","start_time":"2025-01-15T10:00:00","end_time":"2025-01-15T10:15:00"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "event created", env.Message)

	var created eventDTO
	decodeData(t, env, &created)
	assert.Equal(t, int64(1), created.ID)

	rec = srv.request(http.MethodGet, "/api/events/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"participants":[]`)
	assert.Contains(t, rec.Body.String(), `"is_all_day":false`)

	var got eventDTO
	decodeData(t, decodeEnvelope(t, rec), &got)
	assert.Equal(t, "Standup", got.Title)
	assert.Equal(t, "work", got.EventType)
	assert.Equal(t, "scheduled", got.Status)
	assert.Equal(t, 15, got.ReminderMinutes)
	assert.Equal(t, "2025-01-15T10:00:00", got.StartTime)
	assert.Equal(t, "2025-01-15T10:15:00", got.EndTime)
	assert.Equal(t, "2025-01-15T09:00:00", got.CreatedAt)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestCreateEventKeepsTitleVerbatim(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)

	created := createEvent(t, srv, token, map[string]any{
		"title":      "  padded  ",
		"start_time": "2025-01-15T10:00:00",
		"end_time":   "2025-01-15T11:00:00",
	})
	assert.Equal(t, "  padded  ", created.Title)

	rec := srv.request(http.MethodGet, "/api/events/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got eventDTO
	decodeData(t, decodeEnvelope(t, rec), &got)
	assert.Equal(t, created, got)
}

func TestCreateEventFlexibleFieldTypes(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)

	dto := createEvent(t, srv, token, map[string]any{
		"title":            "Review",
		"start_time":       "2025-01-16 14:00",
		"end_time":         "2025-01-16T15:00:00Z",
		"participants":     "Sato, Suzuki,, Sato",
		"reminder_minutes": "30",
		"is_all_day":       1,
		"event_type":       "meeting",
		"location":         nil,
	})
	assert.Equal(t, []string{"Sato", "Suzuki"}, dto.Participants)
	assert.Equal(t, 30, dto.ReminderMinutes)
	assert.True(t, dto.IsAllDay)
	assert.Equal(t, "meeting", dto.EventType)
	assert.Equal(t, "2025-01-16T14:00:00", dto.StartTime)
	assert.Equal(t, "2025-01-16T15:00:00", dto.EndTime)
	assert.Empty(t, dto.Location)

	dto = createEvent(t, srv, token, map[string]any{
		"title":        "Lunch",
		"start_time":   "2025-01-16T12:00:00",
		"end_time":     "2025-01-16T13:00:00",
		"participants": []string{"Kato"},
		"is_all_day":   false,
	})
	assert.Equal(t, []string{"Kato"}, dto.Participants)
}

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing title", body: `{"start_time":"2025-01-15T10:00:00","end_time":"2025-01-15T11:00:00"}`, message: "title is required"},
		{name: "end before start", body: `{"title":"x","start_time":"2025-01-15T11:00:00","end_time":"2025-01-15T10:00:00"}`, message: "start_time must be earlier than end_time"},
		{name: "bad time", body: `{"title":"x","start_time":"tomorrow","end_time":"2025-01-15T10:00:00"}`, message: "start_time has an invalid time format"},
		{name: "bad type", body: `{"title":"x","start_time":"2025-01-15T10:00:00","end_time":"2025-01-15T11:00:00","event_type":"party"}`, message: "event_type must be one of"},
		{name: "title not a string", body: `{"title":5,"start_time":"2025-01-15T10:00:00","end_time":"2025-01-15T11:00:00"}`, message: "title"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.request(http.MethodPost, "/api/events", token, strings.NewReader(tc.body))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Contains(t, env.Message, tc.message)

			var data struct {
				Errors []map[string]string `json:"errors"`
			}
			decodeData(t, env, &data)
			assert.NotEmpty(t, data.Errors)
		})
	}

	t.Run("not json", func(t *testing.T) {
		rec := srv.request(http.MethodPost, "/api/events", token, strings.NewReader(`title=x`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgBadRequestBody, decodeEnvelope(t, rec).Message)
	})

	assert.Empty(t, listEvents(t, srv, token, "/api/events"))
}

func TestEventIDParsing(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)

	for _, id := range []string{"abc", "0", "-3", "1.5"} {
		rec := srv.request(http.MethodGet, "/api/events/"+id, token, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, msgInvalidEventID, decodeEnvelope(t, rec).Message)
	}

	rec := srv.request(http.MethodGet, "/api/events/42", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgEventNotFound, decodeEnvelope(t, rec).Message)
}

func TestUpdateEvent(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)
	created := createEvent(t, srv, token, map[string]any{
		"title":        "Planning",
		"start_time":   "2025-01-17T10:00:00",
		"end_time":     "2025-01-17T11:00:00",
		"participants": []string{"Ito"},
	})

	srv.stack.Clock.Advance(time.Hour)
	rec := srv.request(http.MethodPut, "/api/events/1", token, strings.NewReader(`{"title":"Planning v2","status":"completed"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated eventDTO
	decodeData(t, decodeEnvelope(t, rec), &updated)
	assert.Equal(t, "Planning v2", updated.Title)
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, created.StartTime, updated.StartTime)
	assert.Equal(t, created.EndTime, updated.EndTime)
	assert.Equal(t, []string{"Ito"}, updated.Participants)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "2025-01-15T10:00:00", updated.UpdatedAt)

	t.Run("single time field is checked against the stored one", func(t *testing.T) {
		rec := srv.request(http.MethodPut, "/api/events/1", token, strings.NewReader(`{"end_time":"2025-01-17T09:00:00"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty title", func(t *testing.T) {
		rec := srv.request(http.MethodPut, "/api/events/1", token, strings.NewReader(`{"title":"   "}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing event", func(t *testing.T) {
		rec := srv.request(http.MethodPut, "/api/events/9", token, strings.NewReader(`{"title":"x"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)
	createEvent(t, srv, token, map[string]any{
		"title":      "Dentist",
		"start_time": "2025-01-20T15:00:00",
		"end_time":   "2025-01-20T16:00:00",
	})

	for i := 0; i < 2; i++ {
		rec := srv.request(http.MethodDelete, "/api/events/1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "event deleted", decodeEnvelope(t, rec).Message)
	}
	assert.Equal(t, http.StatusNotFound, srv.request(http.MethodGet, "/api/events/1", token, nil).Code)
}

func TestListEventViews(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)

	createEvent(t, srv, token, map[string]any{"title": "Early", "start_time": "2025-01-15T07:00:00", "end_time": "2025-01-15T08:00:00"})
	createEvent(t, srv, token, map[string]any{"title": "Later today", "start_time": "2025-01-15T18:00:00", "end_time": "2025-01-15T19:00:00", "event_type": "personal"})
	createEvent(t, srv, token, map[string]any{"title": "Next week", "start_time": "2025-01-21T10:00:00", "end_time": "2025-01-21T11:00:00", "event_type": "meeting"})
	createEvent(t, srv, token, map[string]any{"title": "Cancelled", "start_time": "2025-01-16T10:00:00", "end_time": "2025-01-16T11:00:00", "status": "cancelled"})
	createEvent(t, srv, token, map[string]any{"title": "Far away", "start_time": "2025-03-01T10:00:00", "end_time": "2025-03-01T11:00:00"})

	titles := func(events []eventDTO) []string {
		out := make([]string, 0, len(events))
		for _, e := range events {
			out = append(out, e.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Early", "Later today", "Cancelled", "Next week", "Far away"}, titles(listEvents(t, srv, token, "/api/events")))
	assert.Equal(t, []string{"Early", "Later today"}, titles(listEvents(t, srv, token, "/api/events/today")))
	assert.Equal(t, []string{"Later today", "Next week"}, titles(listEvents(t, srv, token, "/api/events/upcoming")))
	assert.Equal(t, []string{"Next week"}, titles(listEvents(t, srv, token, "/api/events?type=meeting")))
	assert.Equal(t, []string{"Cancelled", "Next week"}, titles(listEvents(t, srv, token, "/api/events?start=2025-01-16T00:00:00&end=2025-01-31T00:00:00")))

	rec := srv.request(http.MethodGet, "/api/events?type=party", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEvents(t *testing.T) {
	t.Parallel()
	srv, token := newEventServer(t)
	createEvent(t, srv, token, map[string]any{
		"title":        "Standup",
		"start_time":   "2025-01-15T10:00:00",
		"end_time":     "2025-01-15T10:15:00",
		"participants": []string{"Sato"},
	})

	rec := srv.request(http.MethodGet, "/api/events/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calendarexport.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "calendar.ics")

	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Standup")
	assert.Contains(t, body, "DTSTART:20250115T100000Z")
	assert.Contains(t, body, "UID:1@calendar.local")
}
