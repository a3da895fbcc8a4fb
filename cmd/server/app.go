package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ocgrimoire/grimoire-api/internal/config"
	"github.com/ocgrimoire/grimoire-api/internal/media/images"
	"github.com/ocgrimoire/grimoire-api/internal/platform/postgres"
	"github.com/ocgrimoire/grimoire-api/internal/ratelimit"
	"github.com/ocgrimoire/grimoire-api/internal/redact"
	"github.com/ocgrimoire/grimoire-api/internal/service"
	"github.com/ocgrimoire/grimoire-api/internal/service/auth"
	"github.com/ocgrimoire/grimoire-api/internal/store"
	"github.com/ocgrimoire/grimoire-api/internal/worker"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	pool    *worker.Pool
	limiter *ratelimit.KeyedRateLimiter
	blobs   *images.FSStore

	jwtService  auth.JWTService
	userService service.UserService
	bookService service.BookService
}

// newApplication wires the Postgres stores into the application.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app, err := buildApplication(
		cfg,
		logger,
		postgres.NewPostgresUserStore(db, logger),
		postgres.NewPostgresBookStore(db, logger),
		auth.NewBcryptVerifier(cfg.Auth.BcryptCost),
	)
	if err != nil {
		return nil, err
	}
	app.db = db
	return app, nil
}

// buildApplication creates every service on top of the given stores. The
// worker pool is started; cleanup stops it.
func buildApplication(
	cfg *config.Config,
	logger *slog.Logger,
	userStore store.UserStore,
	bookStore store.BookStore,
	passwords service.PasswordService,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.blobs, err = images.NewFSStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image storage: %w", err)
	}

	app.pool = worker.NewPool(worker.Config{WorkerCount: cfg.Workers.Count}, logger)
	app.pool.Start()

	app.limiter = ratelimit.New(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst)

	app.userService, err = service.NewUserService(userStore, passwords, app.jwtService, app.pool, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	pipeline := images.NewPipeline(app.blobs, app.pool, logger)
	app.bookService, err = service.NewBookService(bookStore, pipeline, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create book service: %w", err)
	}

	logger.Info("application initialized",
		slog.Int("workers", app.pool.Size()),
		slog.String("upload_dir", app.blobs.Dir()))
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	err := app.startHTTPServer(ctx, app.setupRouter())
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// shutdownTimeout is the grace period for in-flight requests.
func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.pool != nil {
		app.pool.Stop()
	}
	if app.limiter != nil {
		app.limiter.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection",
				slog.String("error", redact.Error(err)))
		}
	}
	app.logger.Info("application shutdown completed")
}
