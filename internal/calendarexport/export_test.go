package calendarexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/application"
)

func decode(t *testing.T, data []byte) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	require.NoError(t, err)
	return cal
}

func TestEncode_TimedEvent(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	events := []application.Event{{
		ID:              7,
		Title:           "Standup",
		Description:     "daily sync",
		Location:        "Room A",
		Type:            application.EventTypeMeeting,
		Status:          application.EventStatusScheduled,
		Start:           time.Date(2025, 1, 15, 10, 0, 0, 0, tokyo),
		End:             time.Date(2025, 1, 15, 10, 15, 0, 0, tokyo),
		Participants:    []string{"alice@example.com", "Bob Smith"},
		ReminderMinutes: 10,
	}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, events, Options{Host: "test", Stamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}))
	assert.Contains(t, buf.String(), "DTSTART:20250115T010000Z")

	cal := decode(t, buf.Bytes())
	vevents := cal.Events()
	require.Len(t, vevents, 1)
	event := vevents[0]

	uid, err := event.Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "7@test", uid)

	summary, err := event.Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Standup", summary)

	start, err := event.DateTimeStart(nil)
	require.NoError(t, err)
	assert.True(t, start.Equal(events[0].Start))

	assert.Len(t, event.Props.Values(ical.PropAttendee), 2)
	assert.Equal(t, "mailto:alice@example.com", event.Props.Values(ical.PropAttendee)[0].Value)

	require.Len(t, event.Children, 1)
	alarm := event.Children[0]
	assert.Equal(t, ical.CompAlarm, alarm.Name)
	assert.Equal(t, "-PT10M", alarm.Props.Get(ical.PropTrigger).Value)

	status, err := event.Props.Text(ical.PropStatus)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", status)
}

func TestEncode_AllDayAndCancelled(t *testing.T) {
	events := []application.Event{{
		ID:     1,
		Title:  "Holiday",
		Type:   application.EventTypePersonal,
		Status: application.EventStatusCancelled,
		Start:  time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 5, 5, 23, 59, 59, 0, time.UTC),
		AllDay: true,
	}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, events, Options{}))
	out := buf.String()

	assert.Contains(t, out, "DTSTART;VALUE=DATE:20250505")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20250506")
	assert.Contains(t, out, "STATUS:CANCELLED")
	assert.Contains(t, out, "CATEGORIES:PERSONAL")
	assert.NotContains(t, out, "BEGIN:VALARM")
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
}
