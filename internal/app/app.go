// Package app assembles a running Docketline instance from its config: the
// store, the event outbox and its sinks, the engine, the reminder scheduler
// and the HTTP API.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docketline/internal/clock"
	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/engine"
	"docketline/internal/events"
	"docketline/internal/metrics"
	"docketline/internal/migrate"
	"docketline/internal/reminder"
	"docketline/internal/repo"
	"docketline/internal/repo/memory"
	"docketline/internal/server"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Logger *slog.Logger
	Clock  clock.Clock
}

type App struct {
	Config    *config.Config
	Engine    engine.Engine
	Scheduler *reminder.Scheduler
	Outbox    *events.Outbox
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	lister server.EventLister
	db     *sql.DB
	redis  *events.RedisStreamSink
}

// New opens the configured store and wires every component. The outbox is
// started; Close releases what New acquired.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Metrics: metrics.New(), Logger: logger}

	var (
		store engine.Store
		sinks []events.Sink
	)
	switch cfg.Store.Driver {
	case "memory":
		mem := events.NewMemory(0)
		store = memory.New()
		a.lister = mem
		sinks = append(sinks, mem)
	case "", "sqlite":
		conn, err := db.Open(db.Config{Workspace: cfg.Store.Workspace})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		version, err := migrate.Migrate(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Debug("store ready", "driver", "sqlite", "path", db.Path(cfg.Store.Workspace), "schema_version", version)
		a.db = conn
		r := repo.Repo{DB: conn}
		store = r
		a.lister = r
		if cfg.Events.Log {
			sinks = append(sinks, events.SQLSink{DB: conn})
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	for _, wh := range cfg.Events.Webhooks {
		sinks = append(sinks, events.NewWebhookSink(wh.URL, wh.Secret, wh.Events, wh.Timeout))
	}
	if cfg.Events.Redis.URL != "" {
		client, err := events.NewRedisClient(ctx, cfg.Events.Redis.URL)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.redis = events.NewRedisStreamSink(client, cfg.Events.Redis.Stream, cfg.Events.Redis.MaxLen)
		sinks = append(sinks, a.redis)
	}

	a.Outbox = events.NewOutbox(events.OutboxOptions{
		Size:            cfg.Events.OutboxSize,
		DeliveryTimeout: cfg.Events.DeliveryTimeout,
		Logger:          logger,
		Metrics:         a.Metrics,
	}, sinks...)
	a.Outbox.Start()

	eng := engine.New(store, cfg)
	eng.Events = a.Outbox
	eng.Metrics = a.Metrics
	if opts.Clock != nil {
		eng.Clock = opts.Clock
	}
	a.Scheduler = reminder.New(eng, reminder.Options{
		Concurrency: cfg.Reminders.Concurrency,
		Clock:       eng.Clock,
		Logger:      logger,
		Metrics:     a.Metrics,
	})
	eng.Reminders = a.Scheduler
	a.Engine = eng

	logger.Info("docketline ready", "driver", cfg.Store.Driver, "sinks", len(sinks))
	return a, nil
}

// Handler builds the HTTP API.
func (a *App) Handler() (http.Handler, error) {
	secret := a.Config.Server.JWTSecret
	if secret == "" {
		secret = os.Getenv("DOCKETLINE_JWT_SECRET")
	}
	return server.New(server.Config{
		Engine:    a.Engine,
		Events:    a.lister,
		Reminders: a.Scheduler,
		Metrics:   a.Metrics,
		BasePath:  a.Config.Server.BasePath,
		Logger:    a.Logger,
		Auth: server.AuthConfig{
			JWTSecret:        secret,
			AllowHeaderActor: a.Config.Server.AllowHeaderActor,
			DevLogin:         a.Config.Server.DevLogin,
			Logger:           a.Logger,
		},
	})
}

// Run serves the API and ticks the reminder scheduler until ctx is done or
// either fails.
func (a *App) Run(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: a.Config.Server.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("serving docketline API", "addr", srv.Addr, "base_path", a.Config.Server.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.Scheduler.Run(gctx, a.Config.Reminders.Interval)
	})
	return g.Wait()
}

// Close drains the outbox and releases the store and sinks.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Outbox != nil {
		drainCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := a.Outbox.Close(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain outbox: %w", err))
		}
		cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveConfig loads docketline.yml from workspace, falling back to the
// defaults when the file is absent. The store workspace defaults to the
// workspace itself.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Store.Workspace == "" || cfg.Store.Workspace == "." {
		cfg.Store.Workspace = workspace
	}
	return cfg, nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Log.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
