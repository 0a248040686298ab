package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ivlev/daybyday/internal/artifact"
	"github.com/ivlev/daybyday/internal/catalog"
	"github.com/ivlev/daybyday/internal/config"
	"github.com/ivlev/daybyday/internal/httpapi"
	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/logger"
	"github.com/ivlev/daybyday/internal/pkg/shutdown"
	"github.com/ivlev/daybyday/internal/progress"
	"github.com/ivlev/daybyday/internal/storage"
)

// services is what serve and worker share: the job manager and the
// connections behind it. Every connection registers its own shutdown.
type services struct {
	manager *jobs.Manager
	store   *artifact.Store
	rdb     *redis.Client
	checks  map[string]httpapi.Check
}

func startServices(ctx context.Context, cfg *config.Config, log *logger.Logger, sm *shutdown.Manager) (*services, error) {
	s := &services{checks: make(map[string]httpapi.Check)}
	var opts jobs.Options
	opts.MaxJobs = cfg.Render.MaxJobs
	opts.Retention = cfg.Render.JobRetention
	opts.KeepFinished = cfg.Render.KeepJobs
	opts.Log = log

	if cfg.Redis.Addr != "" {
		log.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		sm.Register("redis", func(ctx context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "serve.redis", "redis is not reachable")
		}
		s.rdb = rdb
		s.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		pub := progress.NewRedisPublisher(rdb, cfg.Redis.ProgressChannel, log)
		sm.RegisterSimple("progress-publisher", pub.Close)
		opts.Fanout = pub
	}

	if cfg.Database.URL != "" {
		log.Info("connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "serve.postgres", "database url is invalid")
		}
		sm.RegisterSimple("postgres", pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "serve.postgres", "postgres is not reachable")
		}
		s.checks["postgres"] = pool.Ping

		cat := catalog.New(pool)
		if err := cat.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		opts.Observers = append(opts.Observers, cat)
	}

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	log.Info("storage provider initialized", "provider", sp.Provider())
	s.store = artifact.NewStore(sp, cfg.Storage.Prefix)

	pipeline, err := newPipeline(ctx, cfg, s.store, log)
	if err != nil {
		return nil, err
	}

	s.manager = jobs.NewManager(pipeline, opts)
	sm.Register("jobs", s.manager.Shutdown)
	return s, nil
}
