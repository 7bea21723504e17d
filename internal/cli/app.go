package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/garita/internal/config"
	dbpkg "github.com/BrandonDHaskell/garita/internal/db"
	"github.com/BrandonDHaskell/garita/internal/garita/catalog"
	"github.com/BrandonDHaskell/garita/internal/garita/engine"
	"github.com/BrandonDHaskell/garita/internal/garita/events"
	"github.com/BrandonDHaskell/garita/internal/garita/lock"
	"github.com/BrandonDHaskell/garita/internal/garita/metrics"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/service"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
	"github.com/BrandonDHaskell/garita/internal/garita/store/memory"
	"github.com/BrandonDHaskell/garita/internal/garita/store/postgres"
	"github.com/BrandonDHaskell/garita/internal/garita/store/sqlite"
)

// storage is an opened backend. db is nil for the memory store.
type storage struct {
	store store.Store
	db    *sql.DB
	ph    dbpkg.Placeholder
	close func()
}

// syncPoints mirrors catalog points into the SQL control_points table. It is
// a no-op for the memory store.
func (s *storage) syncPoints(ctx context.Context, points []model.ControlPoint) error {
	if s.db == nil {
		return nil
	}
	return dbpkg.SyncControlPoints(ctx, s.db, s.ph, points)
}

// openStorage opens the configured backend. SQL backends are migrated on
// open.
func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return &storage{store: memory.New(), close: func() {}}, nil

	case config.StoreSQLite:
		db, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		w := dbpkg.NewWorker(db)
		return &storage{
			store: sqlite.New(db, w),
			db:    db,
			ph:    dbpkg.QuestionMarks,
			close: func() {
				w.Close()
				_ = db.Close()
			},
		}, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &storage{
			store: postgres.New(db),
			db:    db,
			ph:    dbpkg.DollarNumbers,
			close: func() { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// catalogSource picks the YAML file when one is configured.
func catalogSource(cfg config.Config) catalog.Source {
	if cfg.ControlPointsPath != "" {
		return catalog.File{Path: cfg.ControlPointsPath}
	}
	return catalog.Default()
}

// App is the wired server: storage, catalog, engine and the registrar with
// its collaborators.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Catalog   *catalog.Catalog
	Metrics   *metrics.Metrics
	Registrar *service.Registrar

	closers []func()
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewApp opens storage and builds the registrar. Redis and Kafka are used
// when configured; otherwise locks stay in-process and events go to the log.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (app *App, err error) {
	mode, err := service.ParseClosureMode(cfg.ClosureMode)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.close)

	app.Catalog, err = catalog.New(ctx, catalogSource(cfg), catalog.WithOnLoad(st.syncPoints))
	if err != nil {
		return nil, fmt.Errorf("load control points: %w", err)
	}

	var locker lock.Locker = lock.NewSharded()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		app.closers = append(app.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		locker = lock.NewRedis(client)
	}

	var publisher events.Publisher = events.NewLog(logger)
	if len(cfg.KafkaBrokers) > 0 {
		k, err := events.NewKafka(ctx, events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, k.Close)
		publisher = k
	}

	app.Metrics = metrics.New()
	eng := engine.New(app.Catalog, engine.Options{
		ClosureOffset:  cfg.ClosureOffset,
		MaxOpenPerKind: cfg.MaxOpenPerKind,
	})
	app.Registrar = service.NewRegistrar(st.store, eng, service.Options{
		ClosureMode: mode,
		Locker:      locker,
		Publisher:   publisher,
		Metrics:     app.Metrics,
		Logger:      logger,
	})

	logger.Info("garita ready",
		slog.String("store", cfg.Store),
		slog.String("closure_mode", string(mode)),
		slog.Int("control_points", len(app.Catalog.Snapshot().All())),
		slog.Bool("redis_locks", cfg.RedisURL != ""),
		slog.Bool("kafka_events", len(cfg.KafkaBrokers) > 0),
	)
	return app, nil
}

var errMemoryStore = errors.New("the memory store keeps nothing between runs")
