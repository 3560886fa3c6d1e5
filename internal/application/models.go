package application

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// TenantUserID is the user id every event and session belongs to.
const TenantUserID int64 = 1

// TimestampLayout is the wall-clock layout used for event timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

// EventType classifies an event.
type EventType string

const (
	EventTypeMeeting  EventType = "meeting"
	EventTypeWork     EventType = "work"
	EventTypePersonal EventType = "personal"
	EventTypeOther    EventType = "other"
)

// ParseEventType accepts only the four known event types.
func ParseEventType(value string) (EventType, error) {
	switch t := EventType(value); t {
	case EventTypeMeeting, EventTypeWork, EventTypePersonal, EventTypeOther:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", value)
	}
}

// EventStatus tracks the progress of an event.
type EventStatus string

const (
	EventStatusScheduled  EventStatus = "scheduled"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// ParseEventStatus accepts only the four known statuses.
func ParseEventStatus(value string) (EventStatus, error) {
	switch s := EventStatus(value); s {
	case EventStatusScheduled, EventStatusInProgress, EventStatusCompleted, EventStatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown event status %q", value)
	}
}

// Event is a calendar entry of the single tenant.
type Event struct {
	ID              int64
	UserID          int64
	Title           string
	Description     string
	Type            EventType
	Start           time.Time
	End             time.Time
	Location        string
	Participants    []string
	Status          EventStatus
	ReminderMinutes int
	AllDay          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventFields is raw event input as supplied by a client. A field that is
// None was not supplied at all.
type EventFields struct {
	Title           mo.Option[string]
	Description     mo.Option[string]
	Type            mo.Option[string]
	Start           mo.Option[string]
	End             mo.Option[string]
	Location        mo.Option[string]
	Participants    mo.Option[[]string]
	Status          mo.Option[string]
	ReminderMinutes mo.Option[int]
	AllDay          mo.Option[bool]
}

// EventPatch lists the mutable fields of an event with optional presence.
// Values are already validated.
type EventPatch struct {
	Title           mo.Option[string]
	Description     mo.Option[string]
	Type            mo.Option[EventType]
	Start           mo.Option[time.Time]
	End             mo.Option[time.Time]
	Location        mo.Option[string]
	Participants    mo.Option[[]string]
	Status          mo.Option[EventStatus]
	ReminderMinutes mo.Option[int]
	AllDay          mo.Option[bool]
}

// TouchesTime reports whether the patch changes start or end.
func (p EventPatch) TouchesTime() bool {
	return p.Start.IsPresent() || p.End.IsPresent()
}

// Apply returns a copy of event with every present field replaced.
func (p EventPatch) Apply(event Event) Event {
	if v, ok := p.Title.Get(); ok {
		event.Title = v
	}
	if v, ok := p.Description.Get(); ok {
		event.Description = v
	}
	if v, ok := p.Type.Get(); ok {
		event.Type = v
	}
	if v, ok := p.Start.Get(); ok {
		event.Start = v
	}
	if v, ok := p.End.Get(); ok {
		event.End = v
	}
	if v, ok := p.Location.Get(); ok {
		event.Location = v
	}
	if v, ok := p.Participants.Get(); ok {
		event.Participants = append([]string(nil), v...)
	}
	if v, ok := p.Status.Get(); ok {
		event.Status = v
	}
	if v, ok := p.ReminderMinutes.Get(); ok {
		event.ReminderMinutes = v
	}
	if v, ok := p.AllDay.Get(); ok {
		event.AllDay = v
	}
	return event
}

// EventFilterInput carries the raw list filters of a request. Empty strings mean no constraint.
type EventFilterInput struct {
	Start string
	End   string
	Type  string
}

// EventQuery is a validated repository query.
type EventQuery struct {
	// StartFrom keeps events whose start is at or after the instant.
	StartFrom mo.Option[time.Time]
	// StartBefore keeps events whose start is strictly before the instant.
	StartBefore mo.Option[time.Time]
	// EndUntil keeps events whose end is at or before the instant.
	EndUntil mo.Option[time.Time]
	Type     mo.Option[EventType]
	Status   mo.Option[EventStatus]
}

// Identity is the authenticated caller.
type Identity struct {
	UserID   int64
	Username string
}

// Session is an issued login session.
type Session struct {
	Token        string
	UserID       int64
	Username     string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	UserAgent    string
	ClientIP     string
}

// ValidAt reports whether the session is still usable at instant now.
func (s Session) ValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Identity returns the identity the session was issued for.
func (s Session) Identity() Identity {
	return Identity{UserID: s.UserID, Username: s.Username}
}

// FileKind is the coarse category of an uploaded file.
type FileKind string

const (
	FileKindText     FileKind = "text"
	FileKindImage    FileKind = "image"
	FileKindDocument FileKind = "document"
	FileKindOther    FileKind = "other"
)

// FileInfo describes one stored upload.
type FileInfo struct {
	Name       string
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
	Kind       FileKind
	URL        string
}

// StoredFile is the result of storing an upload.
type StoredFile struct {
	Name         string
	OriginalName string
	Size         int64
	URL          string
	UploadedAt   time.Time
}
