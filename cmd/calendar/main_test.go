package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	hash, err := application.CreatePasswordHash("s3cret", application.Argon2idParams{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	static := filepath.Join(dir, "static")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "login.html"), []byte("<form>login</form>"), 0o644))

	return config.Config{
		HTTPPort:          0,
		SQLitePath:        filepath.Join(dir, "data", "calendar.db"),
		LogLevel:          "info",
		Location:          time.UTC,
		SessionTTL:        time.Hour,
		SessionStore:      config.SessionStoreSQLite,
		SessionFallback:   true,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		BlobBackend:       config.BlobBackendLocal,
		UploadDir:         filepath.Join(dir, "uploads"),
		UploadMaxBytes:    config.DefaultUploadMaxBytes,
		UploadURLPrefix:   "/uploads/",
		StaticDir:         static,
		LoginPath:         "/login.html",
	}
}

func TestNewAppServesTheAPI(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	a, err := newApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/login.html")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "login")

	resp, err = http.Post(srv.URL+"/api/login", "application/json", strings.NewReader(`{"username":"admin","password":"s3cret"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := resp.Header.Get("X-Session-Token")
	require.NotEmpty(t, token)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/events", bytes.NewBufferString(
		`{"title":"Standup","start_time":"2025-01-15T10:00:00","end_time":"2025-01-15T10:15:00"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, int64(1), env.Data.ID)

	assert.FileExists(t, cfg.SQLitePath)
	assert.DirExists(t, cfg.UploadDir)
}

func TestNewAppRejectsBadAdminHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminPasswordHash = "not-a-hash"

	_, err := newApp(context.Background(), cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin account")
}

func TestSessionRepositorySelection(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a, err := newApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	cases := []struct {
		name     string
		store    string
		fallback bool
		want     string
	}{
		{name: "sqlite with failover", store: config.SessionStoreSQLite, fallback: true, want: "*application.FailoverSessionRepository"},
		{name: "sqlite only", store: config.SessionStoreSQLite, want: "*adapters.SessionRepository"},
		{name: "memory", store: config.SessionStoreMemory, fallback: true, want: "*adapters.SessionRepository"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cfg
			c.SessionStore = tc.store
			c.SessionFallback = tc.fallback
			assert.Equal(t, tc.want, typeName(sessionRepository(c, nil, logger)))
		})
	}
}

func TestPurgeSessionsStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(context.Background(), cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purgeSessions(ctx, a.sessions, time.Millisecond, slog.New(slog.NewJSONHandler(io.Discard, nil)))
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purge loop did not stop")
	}
}

func TestDisplayBanner(t *testing.T) {
	var buf bytes.Buffer
	displayBanner(&buf)
	assert.NotEmpty(t, strings.TrimSpace(buf.String()))
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
