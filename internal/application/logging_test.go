package application

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, custom, defaultLogger(custom))
	assert.Same(t, slog.Default(), defaultLogger(nil))
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "EventService", "Create", "event_id", 7).Info("created")

	assert.Zero(t, base.Len())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(scoped.Bytes(), &entry))
	assert.Equal(t, "EventService", entry["service"])
	assert.Equal(t, "Create", entry["operation"])
	assert.EqualValues(t, 7, entry["event_id"])
}

func TestServiceLoggerFallsBackToBase(t *testing.T) {
	t.Parallel()

	var base bytes.Buffer
	serviceLogger(context.Background(), slog.New(slog.NewJSONHandler(&base, nil)), "FileService", "").Info("listed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(base.Bytes(), &entry))
	assert.Equal(t, "FileService", entry["service"])
	assert.NotContains(t, entry, "operation")
}
