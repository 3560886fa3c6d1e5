package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionStoreSQLite = "sqlite"
	SessionStoreMemory = "memory"
)

// Blob backends.
const (
	BlobBackendLocal = "local"
	BlobBackendS3    = "s3"
)

// DefaultUploadMaxBytes is the upload ceiling applied when none is configured.
const DefaultUploadMaxBytes int64 = 30 << 20

// Config captures environment driven configuration values for the calendar service.
type Config struct {
	HTTPPort        int
	SQLitePath      string
	LogLevel        string
	Location        *time.Location
	SessionTTL      time.Duration
	SessionStore    string
	SessionFallback bool
	SecureCookie    bool

	AdminUsername     string
	AdminPasswordHash string
	AdminPassword     string

	BlobBackend     string
	UploadDir       string
	UploadMaxBytes  int64
	UploadURLPrefix string
	S3              S3Config

	StaticDir string
	LoginPath string
}

// S3Config holds the settings of the S3 blob backend.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Every missing or malformed entry is
// collected so a single error reports all of them.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLitePath:      "data/calendar.db",
		LogLevel:        "info",
		Location:        time.Local,
		SessionTTL:      24 * time.Hour,
		SessionStore:    SessionStoreSQLite,
		SessionFallback: true,
		SecureCookie:    true,
		AdminUsername:   "admin",
		BlobBackend:     BlobBackendLocal,
		UploadDir:       "uploads",
		UploadMaxBytes:  DefaultUploadMaxBytes,
		UploadURLPrefix: "/uploads/",
		S3:              S3Config{Region: "us-east-1"},
		LoginPath:       "/login.html",
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := env("CALENDAR_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CALENDAR_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if path := env("CALENDAR_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	if level := env("CALENDAR_LOG_LEVEL"); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "CALENDAR_LOG_LEVEL")
		}
	}

	if zone := env("CALENDAR_TIMEZONE"); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "CALENDAR_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if ttlValue := env("CALENDAR_SESSION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "CALENDAR_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if store := env("CALENDAR_SESSION_STORE"); store != "" {
		switch strings.ToLower(store) {
		case SessionStoreSQLite, SessionStoreMemory:
			cfg.SessionStore = strings.ToLower(store)
		default:
			invalid = append(invalid, "CALENDAR_SESSION_STORE")
		}
	}

	if !parseBool("CALENDAR_SESSION_FALLBACK", &cfg.SessionFallback) {
		invalid = append(invalid, "CALENDAR_SESSION_FALLBACK")
	}
	if !parseBool("CALENDAR_SECURE_COOKIE", &cfg.SecureCookie) {
		invalid = append(invalid, "CALENDAR_SECURE_COOKIE")
	}

	if username := env("CALENDAR_ADMIN_USERNAME"); username != "" {
		cfg.AdminUsername = username
	}
	cfg.AdminPasswordHash = env("CALENDAR_ADMIN_PASSWORD_HASH")
	// Passwords keep surrounding whitespace.
	cfg.AdminPassword = os.Getenv("CALENDAR_ADMIN_PASSWORD")
	if cfg.AdminPasswordHash == "" && cfg.AdminPassword == "" {
		missing = append(missing, "CALENDAR_ADMIN_PASSWORD_HASH or CALENDAR_ADMIN_PASSWORD")
	}

	if backend := env("CALENDAR_BLOB_BACKEND"); backend != "" {
		switch strings.ToLower(backend) {
		case BlobBackendLocal, BlobBackendS3:
			cfg.BlobBackend = strings.ToLower(backend)
		default:
			invalid = append(invalid, "CALENDAR_BLOB_BACKEND")
		}
	}

	if dir := env("CALENDAR_UPLOAD_DIR"); dir != "" {
		cfg.UploadDir = dir
	}

	if maxValue := env("CALENDAR_UPLOAD_MAX_BYTES"); maxValue != "" {
		limit, err := strconv.ParseInt(maxValue, 10, 64)
		if err != nil || limit <= 0 {
			invalid = append(invalid, "CALENDAR_UPLOAD_MAX_BYTES")
		} else {
			cfg.UploadMaxBytes = limit
		}
	}

	prefix := env("CALENDAR_UPLOAD_URL_PREFIX")
	if prefix != "" {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		cfg.UploadURLPrefix = prefix
	}

	cfg.S3.Bucket = env("CALENDAR_S3_BUCKET")
	cfg.S3.Prefix = strings.Trim(env("CALENDAR_S3_PREFIX"), "/")
	if region := env("CALENDAR_S3_REGION"); region != "" {
		cfg.S3.Region = region
	}
	cfg.S3.Endpoint = env("CALENDAR_S3_ENDPOINT")
	cfg.S3.AccessKey = env("CALENDAR_S3_ACCESS_KEY")
	cfg.S3.SecretKey = env("CALENDAR_S3_SECRET_KEY")
	if cfg.BlobBackend == BlobBackendS3 {
		if cfg.S3.Bucket == "" {
			missing = append(missing, "CALENDAR_S3_BUCKET")
		}
		// Objects are served by the bucket, not under a local path.
		if prefix == "" {
			missing = append(missing, "CALENDAR_UPLOAD_URL_PREFIX")
		}
		if (cfg.S3.AccessKey == "") != (cfg.S3.SecretKey == "") {
			invalid = append(invalid, "CALENDAR_S3_ACCESS_KEY/CALENDAR_S3_SECRET_KEY")
		}
	}

	cfg.StaticDir = env("CALENDAR_STATIC_DIR")

	if loginPath := env("CALENDAR_LOGIN_PATH"); loginPath != "" {
		if !strings.HasPrefix(loginPath, "/") {
			invalid = append(invalid, "CALENDAR_LOGIN_PATH")
		} else {
			cfg.LoginPath = loginPath
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseBool(key string, target *bool) bool {
	value := env(key)
	if value == "" {
		return true
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	*target = parsed
	return true
}
