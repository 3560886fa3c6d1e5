package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/example/calendar-manager/internal/application"
	"github.com/example/calendar-manager/internal/blobstore/localfs"
	"github.com/example/calendar-manager/internal/blobstore/s3store"
	"github.com/example/calendar-manager/internal/config"
	httptransport "github.com/example/calendar-manager/internal/http"
	"github.com/example/calendar-manager/internal/logging"
	"github.com/example/calendar-manager/internal/persistence/adapters"
	"github.com/example/calendar-manager/internal/persistence/memory"
	"github.com/example/calendar-manager/internal/persistence/sqlite"
)

const (
	appName             = "calendar"
	sessionPurgeEvery   = 15 * time.Minute
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	displayBanner(os.Stderr)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func displayBanner(w io.Writer) {
	fmt.Fprintln(w, figure.NewFigure(appName, "cybermedium", true).String())
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to release resources", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go purgeSessions(ctx, app.sessions, sessionPurgeEvery, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("calendar API listening",
		"addr", server.Addr,
		"session_store", cfg.SessionStore,
		"blob_backend", cfg.BlobBackend,
		"timezone", cfg.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// app is the wired service graph behind the HTTP handler.
type app struct {
	handler  http.Handler
	sessions *application.SessionService
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	pool, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if err := pool.Migrate(ctx, logger); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	admin, err := application.NewAdminAccount(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminPassword, application.DefaultArgon2idParams)
	if err != nil {
		return nil, err
	}

	blobs, files, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := blobs.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}

	now := time.Now
	sessions := application.NewSessionServiceWithLogger(
		sessionRepository(cfg, pool, logger),
		application.GenerateToken,
		now,
		cfg.SessionTTL,
		logger,
	)
	authService := application.NewAuthServiceWithLogger(admin, sessions, application.VerifyPassword, logger)
	eventService := application.NewEventServiceWithLogger(
		adapters.NewEventRepository(sqlite.NewEventRepository(pool, cfg.Location), application.TenantUserID),
		now,
		cfg.Location,
		logger,
	)
	fileService := application.NewFileService(blobs, application.FileServiceOptions{
		MaxBytes:  cfg.UploadMaxBytes,
		URLPrefix: cfg.UploadURLPrefix,
		Now:       now,
		Logger:    logger,
	})

	gate := httptransport.NewAuthGate(sessions, authService, cfg.LoginPath, logger)
	routerCfg := httptransport.RouterConfig{
		Gate: gate,
		Auth: httptransport.NewAuthHandler(authService, gate, httptransport.AuthHandlerOptions{
			SecureCookie: cfg.SecureCookie,
			Location:     cfg.Location,
			Now:          now,
		}, logger),
		Events:      httptransport.NewEventHandler(eventService, now, logger),
		Uploads:     httptransport.NewUploadHandler(fileService, cfg.Location, now, logger),
		Files:       files,
		FilesPrefix: cfg.UploadURLPrefix,
		LoginPage:   cfg.LoginPath,
		Logger:      logger,
		Now:         now,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	}
	if cfg.StaticDir != "" {
		routerCfg.Static = http.FileServer(http.Dir(cfg.StaticDir))
	}

	a.handler = httptransport.NewRouter(routerCfg)
	a.sessions = sessions
	return a, nil
}

// sessionRepository picks the configured session backend. The SQLite store
// is wrapped with an in-memory fallback when failover is enabled.
func sessionRepository(cfg config.Config, pool *sqlite.ConnectionPool, logger *slog.Logger) application.SessionRepository {
	inMemory := adapters.NewSessionRepository(memory.NewSessionRepository())
	if cfg.SessionStore == config.SessionStoreMemory {
		return inMemory
	}
	primary := adapters.NewSessionRepository(sqlite.NewSessionRepository(pool))
	if !cfg.SessionFallback {
		return primary
	}
	return application.NewFailoverSessionRepository(primary, inMemory, logger)
}

// openBlobStore returns the upload backend and, for the local backend, a
// handler serving stored files. S3 objects are served by the bucket itself.
func openBlobStore(ctx context.Context, cfg config.Config) (application.BlobStore, http.Handler, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		client, err := s3store.NewClient(ctx, s3store.ClientOptions{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create s3 client: %w", err)
		}
		store, err := s3store.New(client, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store, err := localfs.Open(cfg.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return store, http.FileServerFS(store.FS()), nil
	}
}

// purgeSessions removes expired sessions until ctx is cancelled.
func purgeSessions(ctx context.Context, sessions *application.SessionService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("session purge failed", "error", err)
			}
		}
	}
}
