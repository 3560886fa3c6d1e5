package persistence

import "time"

// Event is a calendar event row. EventType and Status hold the enumeration
// values as stored.
type Event struct {
	ID              int64
	UserID          int64
	Title           string
	Description     string
	EventType       string
	StartTime       time.Time
	EndTime         time.Time
	Location        string
	Participants    []string
	Status          string
	ReminderMinutes int
	IsAllDay        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventFilter narrows event queries. Nil fields do not constrain.
type EventFilter struct {
	StartFrom   *time.Time
	StartBefore *time.Time
	EndUntil    *time.Time
	EventType   *string
	Status      *string
}

// Session is an authentication session row keyed by its token.
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
