package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/logging"
)

const (
	msgInvalidPath        = "invalid path"
	msgBadRequestBody     = "invalid request body"
	msgAuthRequired       = "authentication required"
	msgInvalidCredentials = "invalid username or password"
	msgForbidden          = "access denied"
	msgInternalError      = "internal server error"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type responder struct {
	logger *slog.Logger
	now    func() time.Time
}

func newResponder(logger *slog.Logger, now func() time.Time) responder {
	if now == nil {
		now = time.Now
	}
	return responder{logger: defaultLogger(logger), now: now}
}

// respond writes the envelope. success follows the status: only 200 and 201
// count as success.
func (r responder) respond(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	r.respondWith(ctx, w, status, status == http.StatusOK || status == http.StatusCreated, message, data)
}

// respondWith writes the envelope with an explicit success flag.
func (r responder) respondWith(ctx context.Context, w http.ResponseWriter, status int, success bool, message string, data any) {
	body, err := json.Marshal(envelope{
		Success:   success,
		Message:   message,
		Data:      data,
		Timestamp: r.now().Format(time.RFC3339),
	})
	if err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(envelope{Message: msgInternalError, Timestamp: r.now().Format(time.RFC3339)})
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		r.loggerFor(ctx).WarnContext(ctx, "failed to write response", "error", err)
	}
}

func (r responder) fail(ctx context.Context, w http.ResponseWriter, status int, message string) {
	r.respond(ctx, w, status, message, nil)
}

// handleServiceError classifies err and writes the matching failure.
// notFound is the message used for a missing resource.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error, notFound string) {
	var (
		vErr     *application.ValidationError
		tooLarge *application.PayloadTooLargeError
	)
	switch {
	case err == nil:
		r.fail(ctx, w, http.StatusInternalServerError, msgInternalError)
	case errors.As(err, &vErr):
		r.respond(ctx, w, http.StatusBadRequest, vErr.Error(), map[string]any{"errors": vErr.Problems})
	case errors.As(err, &tooLarge):
		r.fail(ctx, w, http.StatusBadRequest, tooLarge.Error())
	case errors.Is(err, application.ErrPayloadTooLarge):
		r.fail(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrInvalidCredentials):
		r.fail(ctx, w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, application.ErrUnauthorized):
		r.fail(ctx, w, http.StatusUnauthorized, msgAuthRequired)
	case errors.Is(err, application.ErrForbidden):
		r.fail(ctx, w, http.StatusForbidden, msgForbidden)
	case errors.Is(err, application.ErrNotFound):
		r.fail(ctx, w, http.StatusNotFound, notFound)
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
		r.fail(ctx, w, http.StatusInternalServerError, msgInternalError+": "+err.Error())
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
