// Package calendarexport renders events as an iCalendar (RFC 5545) feed.
package calendarexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/calendar-manager/internal/application"
)

// ContentType is the media type of an encoded feed.
const ContentType = "text/calendar; charset=utf-8"

const defaultProductID = "-//calendar-manager//Calendar Export//EN"

// Options control feed metadata.
type Options struct {
	ProductID string
	// Host qualifies event UIDs, e.g. "1@calendar.local".
	Host string
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// Build converts events into a VCALENDAR.
func Build(events []application.Event, opts Options) *ical.Calendar {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.Host == "" {
		opts.Host = "calendar.local"
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, opts.ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	for _, event := range events {
		cal.Children = append(cal.Children, buildEvent(event, opts))
	}
	return cal
}

// Encode writes events to w as an iCalendar stream.
func Encode(w io.Writer, events []application.Event, opts Options) error {
	if err := ical.NewEncoder(w).Encode(Build(events, opts)); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func buildEvent(event application.Event, opts Options) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, fmt.Sprintf("%d@%s", event.ID, opts.Host))
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, opts.Stamp.UTC())
	vevent.Props.SetText(ical.PropSummary, event.Title)
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	if event.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, event.Start)
		// DTEND is exclusive for dates.
		end := event.End
		if endDay := truncateDay(end); endDay.Equal(end) && end.After(event.Start) {
			vevent.Props.SetDate(ical.PropDateTimeEnd, endDay)
		} else {
			vevent.Props.SetDate(ical.PropDateTimeEnd, endDay.AddDate(0, 0, 1))
		}
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
	}

	vevent.Props.SetText(ical.PropStatus, statusOf(event.Status))
	vevent.Props.SetText(ical.PropCategories, strings.ToUpper(string(event.Type)))
	if !event.CreatedAt.IsZero() {
		vevent.Props.SetDateTime(ical.PropCreated, event.CreatedAt.UTC())
	}
	if !event.UpdatedAt.IsZero() {
		vevent.Props.SetDateTime(ical.PropLastModified, event.UpdatedAt.UTC())
	}
	for _, participant := range event.Participants {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Params.Set(ical.ParamCommonName, participant)
		attendee.Value = attendeeURI(participant)
		vevent.Props.Add(attendee)
	}

	if event.ReminderMinutes > 0 {
		vevent.Children = append(vevent.Children, buildAlarm(event))
	}
	return vevent.Component
}

func buildAlarm(event application.Event) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, event.Title)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", event.ReminderMinutes)
	alarm.Props.Set(trigger)
	return alarm
}

func statusOf(status application.EventStatus) string {
	if status == application.EventStatusCancelled {
		return "CANCELLED"
	}
	return "CONFIRMED"
}

func attendeeURI(participant string) string {
	if strings.Contains(participant, "@") && !strings.ContainsAny(participant, " \t") {
		return "mailto:" + participant
	}
	return "urn:calendar-manager:participant:" + strings.ReplaceAll(participant, " ", "%20")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
