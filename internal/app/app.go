// Package app wires configuration into a ready allocation service. Every
// binary builds its dependencies through Open.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/allocation"
	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/medicalrecord"
	"github.com/hackgods/clinic-scheduling/internal/outcome"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type App struct {
	Service   *allocation.Service
	Directory directory.Lookup
	Backend   store.Backend

	PgPool *pgxpool.Pool
	Redis  *redis.Client

	logger  zerolog.Logger
	closers []func() error
}

// Open connects whatever cfg asks for and assembles the service. Close must
// be called even when Open fails part way; it releases what was opened.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{logger: logger}

	backend, err := a.openBackend(ctx, cfg)
	if err != nil {
		return a, err
	}
	a.Backend = backend

	var opts []store.Option
	if cfg.DistributedLocking() {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return a, fmt.Errorf("redis connection error: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, rdb.Close)
		opts = append(opts, store.WithLocker(redisclient.NewLocker(rdb, cfg.LockTTL, cfg.LockWait)))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	dir, err := directory.LoadFile(cfg.DirectoryFile)
	if err != nil {
		return a, fmt.Errorf("load directory (run cmd/seed to create one): %w", err)
	}
	a.Directory = directory.NewCached(dir, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL)

	publisher, err := a.openPublisher(cfg)
	if err != nil {
		return a, err
	}

	appts := appointment.NewStore(backend, opts...)
	a.Service = allocation.NewService(allocation.Stores{
		Slots:        slot.NewStore(backend, opts...),
		Appointments: appts,
		Outcomes:     outcome.NewStore(backend, a.Directory, appts, opts...),
		Ledger:       billing.NewLedger(backend, opts...),
		Records:      medicalrecord.NewStore(backend, opts...),
	}, logger, allocation.WithDirectory(a.Directory), allocation.WithPublisher(publisher))

	return a, nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		a.logger.Warn().Msg("using in-memory storage, nothing will be persisted")
		return store.NewMemoryBackend(), nil

	case config.StoragePostgres:
		timeout := 2 * cfg.PgConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		pgCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresPool())
		if err != nil {
			return nil, fmt.Errorf("postgres connection error: %w", err)
		}
		a.PgPool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if err := db.Migrate(pgCtx, pool); err != nil {
			return nil, err
		}
		a.logger.Info().Msg("connected to Postgres")
		return store.NewPgBackend(pool), nil

	default:
		b, err := store.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		a.logger.Info().Str("dir", cfg.DataDir).Msg("using file storage")
		return b, nil
	}
}

func (a *App) openPublisher(cfg config.Config) (events.Publisher, error) {
	pubs := events.Multi{events.NewLogPublisher(a.logger)}

	if a.PgPool != nil {
		pubs = append(pubs, events.NewPgPublisher(a.PgPool))
	}

	if cfg.RabbitMQURL != "" {
		rp, err := events.DialRabbit(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq connection error: %w", err)
		}
		a.closers = append(a.closers, rp.Close)
		pubs = append(pubs, rp)
		a.logger.Info().Str("exchange", cfg.RabbitMQExchange).Msg("publishing events to RabbitMQ")
	}

	return pubs, nil
}

// Dependencies lists what readiness should check. Postgres is critical when
// it backs storage; Redis only degrades.
func (a *App) Dependencies() []api.Dependency {
	var deps []api.Dependency
	if a.PgPool != nil {
		deps = append(deps, api.Dependency{Name: "postgres", Pinger: a.PgPool, Critical: true})
	}
	if a.Redis != nil {
		deps = append(deps, api.Dependency{Name: "redis", Pinger: redisclient.Pinger{Client: a.Redis}})
	}
	return deps
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("error during close")
		}
	}
	a.closers = nil
}
