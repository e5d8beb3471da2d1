package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abdulachik/crosspost/internal/account"
	"github.com/abdulachik/crosspost/internal/api"
	"github.com/abdulachik/crosspost/internal/config"
	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/engagement"
	"github.com/abdulachik/crosspost/internal/inbox"
	"github.com/abdulachik/crosspost/internal/platform"
	"github.com/abdulachik/crosspost/internal/publisher"
	"github.com/abdulachik/crosspost/internal/scheduler"
	"github.com/abdulachik/crosspost/internal/telemetry"
)

// Version is stamped into telemetry resources.
var Version = "dev"

// App is the main application container holding all dependencies.
type App struct {
	Config     *config.Config
	Store      *db.Store
	Telemetry  *telemetry.Telemetry
	Accounts   *account.StoreRegistry
	Adapters   platform.Set
	Publisher  *publisher.Publisher
	Scheduler  *scheduler.Scheduler
	Engagement *engagement.Syncer
	Inbox      *inbox.Inbox
}

// OpenStore connects to the configured database and runs migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	var (
		store *db.Store
		err   error
	)
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		slog.Info("connecting to database", "driver", cfg.DatabaseDriver)
		store, err = db.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		slog.Info("connecting to database", "driver", config.DriverSQLite, "path", cfg.DatabasePath)
		store, err = db.NewStore(ctx, cfg.DatabasePath)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// NewAdapters builds one adapter per supported platform.
func NewAdapters(cfg *config.Config) platform.Set {
	timeouts := platform.Timeouts{
		Publish: cfg.PublishTimeout,
		Image:   cfg.ImageTimeout,
		Read:    cfg.ReadTimeout,
	}

	return platform.NewSet(
		platform.NewFacebookAdapter(platform.FacebookConfig{
			BaseURL:  cfg.GraphAPIURL,
			Timeouts: timeouts,
		}),
		platform.NewInstagramAdapter(platform.InstagramConfig{
			BaseURL:       cfg.GraphAPIURL,
			Timeouts:      timeouts,
			ContainerWait: cfg.InstagramContainerWait,
		}),
		platform.NewLinkedInAdapter(platform.LinkedInConfig{
			BaseURL:  cfg.LinkedInAPIURL,
			Timeouts: timeouts,
		}),
	)
}

// New creates a new application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Telemetry first so the publisher and scheduler pick up the provider.
	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.MetricsEnabled,
		ServiceName:   "crosspost",
		Version:       Version,
		TraceExporter: cfg.TraceExporter,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, err
	}

	accounts := account.NewStoreRegistry(store)
	adapters := NewAdapters(cfg)

	pub := publisher.New(store, accounts, adapters, publisher.Config{
		BaseURL:   cfg.BaseURL,
		UploadDir: cfg.UploadDir,
	})

	sched := scheduler.New(scheduler.Config{
		Store:     store,
		Publisher: pub,
		Interval:  cfg.SchedulerInterval,
	})

	return &App{
		Config:     cfg,
		Store:      store,
		Telemetry:  tel,
		Accounts:   accounts,
		Adapters:   adapters,
		Publisher:  pub,
		Scheduler:  sched,
		Engagement: engagement.New(store, accounts, adapters),
		Inbox:      inbox.New(store, accounts, adapters),
	}, nil
}

// API builds the HTTP API over the app's components.
func (a *App) API() *api.Server {
	return api.New(api.Config{
		Store:     a.Store,
		Publisher: a.Publisher,
		Accounts:  a.Accounts,
		Inbox:     a.Inbox,
		Health:    a.Scheduler.Health(),
		Metrics:   a.Telemetry.Handler(),
		UploadDir: a.Config.UploadDir,
	})
}

// Close closes all resources.
func (a *App) Close() error {
	var errs []error
	if a.Telemetry != nil {
		errs = append(errs, a.Telemetry.Shutdown(context.Background()))
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
