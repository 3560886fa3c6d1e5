package application

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/mo"
)

const (
	msgTitleRequired    = "title is required"
	msgTitleEmpty       = "title must not be empty"
	msgStartRequired    = "start_time is required"
	msgEndRequired      = "end_time is required"
	msgStartInvalid     = "start_time has an invalid time format"
	msgEndInvalid       = "end_time has an invalid time format"
	msgTimeOrder        = "start_time must be earlier than end_time"
	msgTypeInvalid      = "event_type must be one of meeting, work, personal, other"
	msgStatusInvalid    = "status must be one of scheduled, in_progress, completed, cancelled"
	msgReminderNegative = "reminder_minutes must not be negative"
)

var errInvalidTimestamp = errors.New("invalid timestamp")

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 timestamp. A trailing Z or an explicit
// offset is honoured and converted into loc; naive values are read in loc.
// The result is truncated to whole seconds.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errInvalidTimestamp
	}
	if strings.HasSuffix(v, "z") {
		v = v[:len(v)-1] + "Z"
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.In(loc).Truncate(time.Second), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, errInvalidTimestamp
}

// FormatTimestamp renders t as wall-clock time in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TimestampLayout)
}

// NormalizeParticipants trims names, splits embedded commas, drops empty
// entries and duplicates, and keeps the first-seen order.
func NormalizeParticipants(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		for _, part := range strings.Split(raw, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// ValidateEventFields checks raw input and converts it into a typed patch.
// In create mode title, start_time and end_time are mandatory. Every
// violated rule is reported.
func ValidateEventFields(fields EventFields, isUpdate bool, loc *time.Location) (EventPatch, error) {
	var (
		patch EventPatch
		vErr  = &ValidationError{}
	)

	title, hasTitle := fields.Title.Get()
	switch {
	case hasTitle && strings.TrimSpace(title) != "":
		patch.Title = mo.Some(title)
	case !isUpdate:
		vErr.add("title", msgTitleRequired)
	case hasTitle:
		vErr.add("title", msgTitleEmpty)
	}

	start, startOK := validateTimeField(vErr, fields.Start, "start_time", msgStartRequired, msgStartInvalid, isUpdate, loc)
	end, endOK := validateTimeField(vErr, fields.End, "end_time", msgEndRequired, msgEndInvalid, isUpdate, loc)
	if startOK {
		patch.Start = mo.Some(start)
	}
	if endOK {
		patch.End = mo.Some(end)
	}
	if startOK && endOK && !start.Before(end) {
		vErr.add("start_time", msgTimeOrder)
	}

	if raw, ok := fields.Type.Get(); ok {
		eventType, err := ParseEventType(strings.TrimSpace(raw))
		if err != nil {
			vErr.add("event_type", msgTypeInvalid)
		} else {
			patch.Type = mo.Some(eventType)
		}
	}

	if raw, ok := fields.Status.Get(); ok {
		status, err := ParseEventStatus(strings.TrimSpace(raw))
		if err != nil {
			vErr.add("status", msgStatusInvalid)
		} else {
			patch.Status = mo.Some(status)
		}
	}

	if minutes, ok := fields.ReminderMinutes.Get(); ok {
		if minutes < 0 {
			vErr.add("reminder_minutes", msgReminderNegative)
		} else {
			patch.ReminderMinutes = mo.Some(minutes)
		}
	}

	if v, ok := fields.Description.Get(); ok {
		patch.Description = mo.Some(v)
	}
	if v, ok := fields.Location.Get(); ok {
		patch.Location = mo.Some(v)
	}
	if v, ok := fields.Participants.Get(); ok {
		patch.Participants = mo.Some(NormalizeParticipants(v))
	}
	if v, ok := fields.AllDay.Get(); ok {
		patch.AllDay = mo.Some(v)
	}

	if err := vErr.errOrNil(); err != nil {
		return EventPatch{}, err
	}
	return patch, nil
}

func validateTimeField(vErr *ValidationError, field mo.Option[string], name, requiredMsg, invalidMsg string, isUpdate bool, loc *time.Location) (time.Time, bool) {
	raw, ok := field.Get()
	if !ok || (!isUpdate && strings.TrimSpace(raw) == "") {
		if !isUpdate {
			vErr.add(name, requiredMsg)
		}
		return time.Time{}, false
	}
	t, err := ParseTimestamp(raw, loc)
	if err != nil {
		vErr.add(name, invalidMsg)
		return time.Time{}, false
	}
	return t, true
}
