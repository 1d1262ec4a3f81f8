package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffappraisal/internal/domain/appraisal"
	"staffappraisal/internal/domain/audit"
	"staffappraisal/internal/domain/notifications"
	"staffappraisal/internal/domain/scoring"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/platform/cache"
	"staffappraisal/internal/platform/config"
	"staffappraisal/internal/platform/db"
	"staffappraisal/internal/platform/jobs"
	"staffappraisal/internal/platform/metrics"
	"staffappraisal/internal/platform/signature"
	appraisalhandler "staffappraisal/internal/transport/http/handlers/appraisal"
	notificationshandler "staffappraisal/internal/transport/http/handlers/notifications"
	"staffappraisal/internal/transport/http/middleware"
	"staffappraisal/migrations"
)

const (
	signatureFolder = "appraisal-signatures"
	jobWorkers      = 2
	shutdownTimeout = 15 * time.Second
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Router  http.Handler
	Metrics *metrics.Collector
	Jobs    *jobs.Runner
}

// Run loads configuration from the environment and serves until ctx is
// cancelled.
func Run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.SetDefault(NewLogger(cfg, os.Stdout))

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Serve(ctx)
}

func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool, Metrics: metrics.New(), Jobs: jobs.New(0)}

	if cfg.RunMigrations {
		var fsys fs.FS = migrations.FS
		if cfg.MigrationsDir != "" {
			fsys = os.DirFS(cfg.MigrationsDir)
		}
		if err := db.Migrate(ctx, pool, fsys); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	var idempotency middleware.IdempotencyStore
	checks := []readinessCheck{{name: "database", ping: pool.Ping}}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		app.Redis = rdb
		store := cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		idempotency = store
		checks = append(checks, readinessCheck{name: "redis", ping: store.Ping})
	} else {
		slog.Warn("REDIS_ADDR not set, submit retries will not be replayed")
	}

	template, err := scoring.LoadTemplate(cfg.CompetencyTemplatePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("competency template: %w", err)
	}

	signatures, err := newSignatureStore(cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("signature store: %w", err)
	}

	notificationService := notifications.New(notifications.NewStore(pool))
	auditService := audit.New(pool)
	appraisalService := appraisal.NewService(appraisal.Deps{
		Store:    appraisal.NewStore(pool),
		Sections: sections.NewStore(pool),
		Template: template,
		Notifier: jobs.NewNotifier(app.Jobs, notificationService),
		Audit:    auditService,
		Metrics:  app.Metrics,
	})

	app.Router = newRouter(routerDeps{
		cfg:           cfg,
		metrics:       app.Metrics,
		checks:        checks,
		appraisals:    appraisalhandler.NewHandler(appraisalService, auditService, signatures, cfg.SignatureMaxBytes, idempotency),
		notifications: notificationshandler.NewHandler(notificationService),
		serveDisk:     cfg.CloudinaryURL == "",
	})
	return app, nil
}

func newSignatureStore(cfg config.Config) (signature.Store, error) {
	if cfg.CloudinaryURL != "" {
		return signature.NewCloudinary(cfg.CloudinaryURL, signatureFolder)
	}
	return signature.NewDisk(cfg.SignatureDir, cfg.SignatureBaseURL)
}

// Serve runs the HTTP server and background jobs until ctx is cancelled,
// then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	jobsCtx, stopJobs := context.WithCancel(context.WithoutCancel(ctx))
	a.Jobs.Start(jobsCtx, jobWorkers)
	defer func() {
		stopJobs()
		a.Jobs.Wait()
	}()

	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("appraisal server listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "err", err)
		return err
	}
	slog.Info("http server stopped")
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
