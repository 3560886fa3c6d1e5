package testfixtures

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/blobstore/localfs"
	"github.com/example/calendar-manager/internal/persistence/adapters"
)

// Admin credentials used by Stack.
const (
	AdminUsername = "admin"
	AdminPassword = "correct horse battery staple"
)

// CheapArgon2Params keeps password hashing fast in tests.
var CheapArgon2Params = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// StackOptions tune NewStack. Zero values pick test defaults.
type StackOptions struct {
	Location       *time.Location
	Start          time.Time
	SessionTTL     time.Duration
	UploadMaxBytes int64
	Logger         *slog.Logger
}

// Stack wires the application services over a temporary SQLite database
// and upload directory with a controllable clock and token sequence.
type Stack struct {
	Clock    *Clock
	Tokens   *TokenSequence
	Location *time.Location
	DB       *SQLiteHarness
	Blobs    *localfs.Store
	Logger   *slog.Logger

	Events   *application.EventService
	Sessions *application.SessionService
	Auth     *application.AuthService
	Files    *application.FileService
}

// NewStack builds a fully wired Stack.
func NewStack(tb testing.TB, opts StackOptions) *Stack {
	tb.Helper()

	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = application.DefaultSessionTTL
	}
	if opts.UploadMaxBytes == 0 {
		opts.UploadMaxBytes = 30 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clock := NewClock(opts.Start)
	tokens := NewTokenSequence("")
	db := NewSQLiteHarness(tb, opts.Location)

	blobs, err := localfs.Open(filepath.Join(tb.TempDir(), "uploads"))
	if err != nil {
		tb.Fatalf("failed to open upload directory: %v", err)
	}
	tb.Cleanup(func() { _ = blobs.Close() })

	admin, err := application.NewAdminAccount(AdminUsername, "", AdminPassword, CheapArgon2Params)
	if err != nil {
		tb.Fatalf("failed to create admin account: %v", err)
	}

	sessions := application.NewSessionServiceWithLogger(
		adapters.NewSessionRepository(db.Sessions),
		tokens.Next,
		clock.NowFunc(),
		opts.SessionTTL,
		opts.Logger,
	)

	return &Stack{
		Clock:    clock,
		Tokens:   tokens,
		Location: opts.Location,
		DB:       db,
		Blobs:    blobs,
		Logger:   opts.Logger,
		Events: application.NewEventServiceWithLogger(
			adapters.NewEventRepository(db.Events, application.TenantUserID),
			clock.NowFunc(),
			opts.Location,
			opts.Logger,
		),
		Sessions: sessions,
		Auth:     application.NewAuthServiceWithLogger(admin, sessions, application.VerifyPassword, opts.Logger),
		Files: application.NewFileService(blobs, application.FileServiceOptions{
			MaxBytes:  opts.UploadMaxBytes,
			URLPrefix: "/uploads/",
			Now:       clock.NowFunc(),
			UniqueTag: func() string { return "dup" },
			Logger:    opts.Logger,
		}),
	}
}
