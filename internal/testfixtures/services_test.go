package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/application"
)

func TestNewStackWiresServices(t *testing.T) {
	stack := NewStack(t, StackOptions{})
	ctx := context.Background()

	event, err := stack.Events.Create(ctx, application.EventFields{
		Title: mo.Some("Standup"),
		Start: mo.Some("2025-01-01T09:00:00"),
		End:   mo.Some("2025-01-01T09:15:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.ID)

	result, err := stack.Auth.Login(ctx, application.LoginParams{Username: AdminUsername, Password: AdminPassword})
	require.NoError(t, err)
	assert.Equal(t, "token-01", result.Session.Token)
	assert.True(t, stack.Sessions.ValidateSession(ctx, "token-01"))

	stack.Clock.Advance(application.DefaultSessionTTL + time.Second)
	assert.False(t, stack.Sessions.ValidateSession(ctx, "token-01"))
}

func TestStackKeepsOffsetsAcrossFallBack(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	stack := NewStack(t, StackOptions{Location: newYork})
	ctx := context.Background()

	crossing, err := stack.Events.Create(ctx, application.EventFields{
		Title: mo.Some("Fall back"),
		Start: mo.Some("2025-11-02T01:30:00-04:00"),
		End:   mo.Some("2025-11-02T01:10:00-05:00"),
	})
	require.NoError(t, err)
	got, err := stack.Events.Get(ctx, crossing.ID)
	require.NoError(t, err)
	assert.Equal(t, crossing, got)

	late, err := stack.Events.Create(ctx, application.EventFields{
		Title: mo.Some("Second reading"),
		Start: mo.Some("2025-11-02T01:30:00-05:00"),
		End:   mo.Some("2025-11-02T02:30:00-05:00"),
	})
	require.NoError(t, err)
	got, err = stack.Events.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, late, got)
	assert.Equal(t, "2025-11-02T06:30:00Z", got.Start.UTC().Format(time.RFC3339))
}
