// Package app assembles the storage, repositories and rate limit engine
// shared by the gateway and the operator CLI.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/config"
	"github.com/aman-churiwal/ringhub-gateway/internal/events"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/aman-churiwal/ringhub-gateway/internal/repository"
	"github.com/aman-churiwal/ringhub-gateway/internal/service"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
)

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Clock     clock.Clock
	Postgres  *storage.Postgres
	Redis     *storage.RedisClient // nil unless the redis counter backend is used
	Publisher events.Publisher
	Engine    *ratelimit.Engine
	Actors    *service.ActorService
	Auth      *service.AuthService
	Users     *repository.UserRepository
}

// Build connects to the configured database and wires everything else on
// top of it.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.NewPostgres(cfg.Database.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a, err := BuildWithDB(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// BuildWithDB wires the application on an already opened database.
func BuildWithDB(cfg *config.Config, db *storage.Postgres, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Clock:    clock.Real(),
		Postgres: db,
	}

	if cfg.Limits.CounterBackend == ratelimit.BackendRedis {
		redis, err := storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.Redis = redis
		logger.Info("connected to redis", "addr", cfg.Redis.GetRedisAddr())
	}

	publisher, err := events.New(cfg.NATS.URL)
	if err != nil {
		a.closeClients()
		return nil, err
	}
	a.Publisher = publisher

	counters, err := ratelimit.NewCounterStore(cfg.Limits.CounterBackend, a.Redis, db, cfg.Limits.Retention.Std())
	if err != nil {
		a.closeClients()
		return nil, err
	}

	forkLimits, err := cfg.ForkLimits()
	if err != nil {
		a.closeClients()
		return nil, err
	}

	var actors ratelimit.ActorDirectory = repository.NewActorRepository(db)
	if cfg.Limits.ActorCacheSize > 0 {
		actors = ratelimit.NewCachedActorDirectory(actors, cfg.Limits.ActorCacheSize, cfg.Limits.ActorCacheTTL.Std())
	}
	rings := repository.NewRingRepository(db)

	engine, err := ratelimit.New(ratelimit.Config{
		Policies: map[string]ratelimit.Policy{
			models.ActionFork: {Limits: forkLimits, QualityGate: true, ReviewMonitor: true},
		},
		StoreTimeout: cfg.Limits.StoreTimeout.Std(),
		Clock:        a.Clock,
		Logger:       logger,
		Publisher:    publisher,
	}, ratelimit.Stores{
		Counters:    counters,
		Reputations: repository.NewReputationRepository(db),
		Actors:      actors,
		Rings:       rings,
	})
	if err != nil {
		a.closeClients()
		return nil, err
	}

	a.Engine = engine
	// only the postgres backend keeps a queryable action history
	var history service.ActionLister
	if cfg.Limits.CounterBackend == ratelimit.BackendPostgres {
		history = repository.NewActionRepository(db)
	}
	a.Actors = service.NewActorService(engine, rings, history, a.Clock)
	a.Users = repository.NewUserRepository(db)
	a.Auth = service.NewAuthService(a.Users, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiryHours)

	return a, nil
}

// RetentionSweeper prunes the engine's counter store on the configured
// schedule.
func (a *App) RetentionSweeper() *service.RetentionSweeper {
	return service.NewRetentionSweeper(a.Engine, service.RetentionConfig{
		Retention: a.Config.Limits.Retention.Std(),
		Interval:  a.Config.Limits.SweepInterval.Std(),
	}, a.Clock, a.Logger)
}

// closeClients closes what BuildWithDB opened, leaving the database to its
// owner.
func (a *App) closeClients() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

// Close releases every connection the app holds, the database included.
func (a *App) Close() error {
	return errors.Join(a.closeClients(), a.Postgres.Close())
}
