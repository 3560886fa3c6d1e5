package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/calendarexport"
)

const (
	msgInvalidEventID = "invalid event id"
	msgEventNotFound  = "event not found"
	maxEventBodyBytes = 1 << 20
)

type eventService interface {
	Location() *time.Location
	List(ctx context.Context, input application.EventFilterInput) ([]application.Event, error)
	ListToday(ctx context.Context) ([]application.Event, error)
	ListUpcoming(ctx context.Context) ([]application.Event, error)
	Get(ctx context.Context, id int64) (application.Event, error)
	Create(ctx context.Context, fields application.EventFields) (application.Event, error)
	Update(ctx context.Context, id int64, fields application.EventFields) (application.Event, error)
	Delete(ctx context.Context, id int64) error
}

// EventHandler serves the /api/events routes.
type EventHandler struct {
	service    eventService
	exportHost string
	now        func() time.Time
	responder  responder
	logger     *slog.Logger
}

func NewEventHandler(service eventService, now func() time.Time, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &EventHandler{
		service:    service,
		exportHost: "calendar.local",
		now:        now,
		responder:  newResponder(base, now),
		logger:     base,
	}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

type eventDTO struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	EventType       string   `json:"event_type"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Location        string   `json:"location"`
	Participants    []string `json:"participants"`
	Status          string   `json:"status"`
	ReminderMinutes int      `json:"reminder_minutes"`
	IsAllDay        bool     `json:"is_all_day"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func (h *EventHandler) toDTO(event application.Event) eventDTO {
	loc := h.service.Location()
	participants := event.Participants
	if participants == nil {
		participants = []string{}
	}
	return eventDTO{
		ID:              event.ID,
		Title:           event.Title,
		Description:     event.Description,
		EventType:       string(event.Type),
		StartTime:       application.FormatTimestamp(event.Start, loc),
		EndTime:         application.FormatTimestamp(event.End, loc),
		Location:        event.Location,
		Participants:    participants,
		Status:          string(event.Status),
		ReminderMinutes: event.ReminderMinutes,
		IsAllDay:        event.AllDay,
		CreatedAt:       application.FormatTimestamp(event.CreatedAt, loc),
		UpdatedAt:       application.FormatTimestamp(event.UpdatedAt, loc),
	}
}

func (h *EventHandler) toDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, h.toDTO(e))
	}
	return out
}

func filterInput(r *http.Request) application.EventFilterInput {
	q := r.URL.Query()
	return application.EventFilterInput{
		Start: q.Get("start"),
		End:   q.Get("end"),
		Type:  q.Get("type"),
	}
}

// List returns events matching the start, end and type query parameters.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.List(ctx, filterInput(r))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "events retrieved", h.toDTOs(events))
}

func (h *EventHandler) Today(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.ListToday(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "today's events retrieved", h.toDTOs(events))
}

func (h *EventHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.ListUpcoming(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "upcoming events retrieved", h.toDTOs(events))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	event, err := h.service.Get(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "event retrieved", h.toDTO(event))
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fields, err := decodeEventFields(w, r)
	if err != nil {
		h.badInput(ctx, w, "Create", err)
		return
	}
	event, err := h.service.Create(ctx, fields)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusCreated, "event created", h.toDTO(event))
}

// Update applies only the fields present in the body.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	fields, err := decodeEventFields(w, r)
	if err != nil {
		h.badInput(ctx, w, "Update", err)
		return
	}
	event, err := h.service.Update(ctx, id, fields)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "event updated", h.toDTO(event))
}

// Delete succeeds whether or not the event existed.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "event deleted", nil)
}

// Export renders the filtered events as an iCalendar attachment.
func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.List(ctx, filterInput(r))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}

	var buf bytes.Buffer
	if err := calendarexport.Encode(&buf, events, calendarexport.Options{Host: h.exportHost, Stamp: h.now()}); err != nil {
		h.log(ctx, "Export").ErrorContext(ctx, "failed to render calendar", "error", err)
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}

	w.Header().Set("Content-Type", calendarexport.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log(ctx, "Export").WarnContext(ctx, "failed to write calendar", "error", err)
	}
}

func (h *EventHandler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.responder.fail(r.Context(), w, http.StatusBadRequest, msgInvalidEventID)
		return 0, false
	}
	return id, true
}

func (h *EventHandler) badInput(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		h.responder.handleServiceError(ctx, w, err, msgEventNotFound)
		return
	}
	h.log(ctx, operation, "error_kind", "bad_request").WarnContext(ctx, "failed to decode event body", "error", err)
	h.responder.fail(ctx, w, http.StatusBadRequest, msgBadRequestBody)
}

// decodeEventFields reads a JSON object into EventFields. Keys outside the
// allow-list are ignored and null counts as absent. Values of the wrong
// type are reported together as a ValidationError.
func decodeEventFields(w http.ResponseWriter, r *http.Request) (application.EventFields, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBodyBytes)).Decode(&raw); err != nil {
		return application.EventFields{}, err
	}
	if raw == nil {
		return application.EventFields{}, errors.New("request body must be a JSON object")
	}

	var (
		fields   application.EventFields
		problems []application.FieldError
	)
	reject := func(field, message string) {
		problems = append(problems, application.FieldError{Field: field, Message: message})
	}

	stringField := func(name string) mo.Option[string] {
		value, ok := raw[name]
		if !ok || isNull(value) {
			return mo.None[string]()
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			reject(name, name+" must be a string")
			return mo.None[string]()
		}
		return mo.Some(s)
	}

	fields.Title = stringField("title")
	fields.Description = stringField("description")
	fields.Type = stringField("event_type")
	fields.Start = stringField("start_time")
	fields.End = stringField("end_time")
	fields.Location = stringField("location")
	fields.Status = stringField("status")

	if value, ok := raw["participants"]; ok && !isNull(value) {
		participants, err := decodeParticipants(value)
		if err != nil {
			reject("participants", "participants must be an array of strings or a comma separated string")
		} else {
			fields.Participants = mo.Some(participants)
		}
	}

	if value, ok := raw["reminder_minutes"]; ok && !isNull(value) {
		minutes, err := decodeInt(value)
		if err != nil {
			reject("reminder_minutes", "reminder_minutes must be an integer")
		} else {
			fields.ReminderMinutes = mo.Some(minutes)
		}
	}

	if value, ok := raw["is_all_day"]; ok && !isNull(value) {
		allDay, err := decodeFlag(value)
		if err != nil {
			reject("is_all_day", "is_all_day must be a boolean")
		} else {
			fields.AllDay = mo.Some(allDay)
		}
	}

	if len(problems) > 0 {
		return application.EventFields{}, &application.ValidationError{Problems: problems}
	}
	return fields, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func decodeParticipants(value json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return list, nil
	}
	var joined string
	if err := json.Unmarshal(value, &joined); err != nil {
		return nil, err
	}
	return []string{joined}, nil
}

func decodeInt(value json.RawMessage) (int, error) {
	var n float64
	if err := json.Unmarshal(value, &n); err != nil {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return 0, err
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, err
		}
		return parsed, nil
	}
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("%v is not an integer", n)
	}
	return int(n), nil
}

func decodeFlag(value json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(value, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(value, &n); err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%v is not 0 or 1", n)
	}
}
