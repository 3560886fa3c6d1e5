package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"CALENDAR_HTTP_PORT",
	"CALENDAR_SQLITE_PATH",
	"CALENDAR_LOG_LEVEL",
	"CALENDAR_TIMEZONE",
	"CALENDAR_SESSION_TTL",
	"CALENDAR_SESSION_STORE",
	"CALENDAR_SESSION_FALLBACK",
	"CALENDAR_SECURE_COOKIE",
	"CALENDAR_ADMIN_USERNAME",
	"CALENDAR_ADMIN_PASSWORD_HASH",
	"CALENDAR_ADMIN_PASSWORD",
	"CALENDAR_BLOB_BACKEND",
	"CALENDAR_UPLOAD_DIR",
	"CALENDAR_UPLOAD_MAX_BYTES",
	"CALENDAR_UPLOAD_URL_PREFIX",
	"CALENDAR_S3_BUCKET",
	"CALENDAR_S3_PREFIX",
	"CALENDAR_S3_REGION",
	"CALENDAR_S3_ENDPOINT",
	"CALENDAR_S3_ACCESS_KEY",
	"CALENDAR_S3_SECRET_KEY",
	"CALENDAR_STATIC_DIR",
	"CALENDAR_LOGIN_PATH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_ADMIN_PASSWORD", "s3cret pass")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, "data/calendar.db", cfg.SQLitePath)
		assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
		assert.Equal(t, SessionStoreSQLite, cfg.SessionStore)
		assert.True(t, cfg.SessionFallback)
		assert.True(t, cfg.SecureCookie)
		assert.Equal(t, "admin", cfg.AdminUsername)
		assert.Equal(t, "s3cret pass", cfg.AdminPassword)
		assert.Equal(t, BlobBackendLocal, cfg.BlobBackend)
		assert.Equal(t, DefaultUploadMaxBytes, cfg.UploadMaxBytes)
		assert.Equal(t, int64(30*1024*1024), cfg.UploadMaxBytes)
		assert.Equal(t, "/uploads/", cfg.UploadURLPrefix)
		assert.Equal(t, "/login.html", cfg.LoginPath)
		assert.Equal(t, time.Local, cfg.Location)
	})

	t.Run("reads explicit values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_HTTP_PORT", "9090")
		t.Setenv("CALENDAR_TIMEZONE", "UTC")
		t.Setenv("CALENDAR_SESSION_TTL", "2h")
		t.Setenv("CALENDAR_SESSION_STORE", "MEMORY")
		t.Setenv("CALENDAR_SESSION_FALLBACK", "false")
		t.Setenv("CALENDAR_ADMIN_USERNAME", "root")
		t.Setenv("CALENDAR_ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA")
		t.Setenv("CALENDAR_UPLOAD_MAX_BYTES", "1024")
		t.Setenv("CALENDAR_UPLOAD_URL_PREFIX", "/calendar/uploads")
		t.Setenv("CALENDAR_BLOB_BACKEND", "s3")
		t.Setenv("CALENDAR_S3_BUCKET", "calendar")
		t.Setenv("CALENDAR_S3_PREFIX", "/files/")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, time.UTC, cfg.Location)
		assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
		assert.Equal(t, SessionStoreMemory, cfg.SessionStore)
		assert.False(t, cfg.SessionFallback)
		assert.Equal(t, "root", cfg.AdminUsername)
		assert.Equal(t, int64(1024), cfg.UploadMaxBytes)
		assert.Equal(t, "/calendar/uploads/", cfg.UploadURLPrefix)
		assert.Equal(t, BlobBackendS3, cfg.BlobBackend)
		assert.Equal(t, "calendar", cfg.S3.Bucket)
		assert.Equal(t, "files", cfg.S3.Prefix)
		assert.Equal(t, "us-east-1", cfg.S3.Region)
	})

	t.Run("errors when admin credentials are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CALENDAR_ADMIN_PASSWORD_HASH or CALENDAR_ADMIN_PASSWORD")
	})

	t.Run("errors when the s3 bucket is missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_ADMIN_PASSWORD", "pw")
		t.Setenv("CALENDAR_BLOB_BACKEND", "s3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CALENDAR_S3_BUCKET")
	})

	t.Run("errors when the s3 backend has no public url prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_ADMIN_PASSWORD", "pw")
		t.Setenv("CALENDAR_BLOB_BACKEND", "s3")
		t.Setenv("CALENDAR_S3_BUCKET", "calendar")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CALENDAR_UPLOAD_URL_PREFIX")
		assert.NotContains(t, err.Error(), "CALENDAR_S3_BUCKET")
	})

	t.Run("accepts a bucket url prefix for the s3 backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_ADMIN_PASSWORD", "pw")
		t.Setenv("CALENDAR_BLOB_BACKEND", "s3")
		t.Setenv("CALENDAR_S3_BUCKET", "calendar")
		t.Setenv("CALENDAR_UPLOAD_URL_PREFIX", "https://calendar.s3.amazonaws.com/files")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://calendar.s3.amazonaws.com/files/", cfg.UploadURLPrefix)
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_ADMIN_PASSWORD", "pw")
		t.Setenv("CALENDAR_HTTP_PORT", "http")
		t.Setenv("CALENDAR_SESSION_TTL", "-1h")
		t.Setenv("CALENDAR_SESSION_STORE", "redis")
		t.Setenv("CALENDAR_SECURE_COOKIE", "maybe")
		t.Setenv("CALENDAR_UPLOAD_MAX_BYTES", "0")
		t.Setenv("CALENDAR_TIMEZONE", "Mars/Olympus")
		t.Setenv("CALENDAR_LOGIN_PATH", "login.html")

		_, err := Load()
		require.Error(t, err)
		for _, key := range []string{
			"CALENDAR_HTTP_PORT",
			"CALENDAR_SESSION_TTL",
			"CALENDAR_SESSION_STORE",
			"CALENDAR_SECURE_COOKIE",
			"CALENDAR_UPLOAD_MAX_BYTES",
			"CALENDAR_TIMEZONE",
			"CALENDAR_LOGIN_PATH",
		} {
			assert.Contains(t, err.Error(), key)
		}
	})
}
