// Package backend wires the storage, event publisher, summary cache and session
// store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"budgetly/internal/amqp"
	"budgetly/internal/auth"
	"budgetly/internal/cache"
	"budgetly/internal/config"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
	"budgetly/internal/services"
	"budgetly/internal/storage"
	"budgetly/internal/storage/memory"
	"budgetly/internal/storage/postgres"
)

const (
	summaryCacheSize   = 1000
	maxMemorySessions  = 10000
	cacheCleanupPeriod = time.Minute
	redisSummaryPrefix = "budgetly:summary:"
)

// Backend holds every long-lived resource shared by the server and the worker.
type Backend struct {
	Store        ports.Store
	Events       *amqp.Client // nil when AMQP_URL is unset or unreachable
	Redis        *redis.Client
	SummaryCache cache.Cache[core.MonthlySummary]
	Sessions     auth.SessionStore
	Caches       *cache.Manager

	logger *log.Logger
}

// Open builds the backend described by cfg. Storage and Redis failures are
// fatal; an unreachable broker is logged and events are disabled.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Backend, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	b := &Backend{
		Caches: cache.NewManager(logger),
		logger: logger.WithComponent(log.ComponentBackend),
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.logger.Info("Storage initialized", log.FieldBackend, cfg.DataBackend)

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.Redis = client
		b.SummaryCache = cache.NewRedisCache[core.MonthlySummary](client, redisSummaryPrefix, cfg.SummaryCacheTTL, logger)
		b.Sessions = auth.NewRedisSessionStore(client, cfg.SessionTTL)
		b.logger.Info("Redis cache and session store enabled")
	} else {
		lru := cache.NewLRUCache[core.MonthlySummary](summaryCacheSize, cfg.SummaryCacheTTL)
		sessions := auth.NewMemorySessionStore(maxMemorySessions, cfg.SessionTTL)
		b.Caches.Register(lru)
		b.Caches.Register(sessions.Cleaner())
		b.SummaryCache = lru
		b.Sessions = sessions
	}
	b.Caches.StartCleanup(cacheCleanupPeriod)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			b.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err.Error())
		} else {
			b.Events = client
			b.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	return b, nil
}

// NewStore opens the storage selected by cfg.DataBackend, running migrations
// for the SQL backends.
func NewStore(ctx context.Context, cfg *config.Config) (ports.Store, error) {
	switch cfg.DataBackend {
	case config.BackendMemory, "":
		return memory.New(), nil
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}
		return repo, nil
	case config.BackendPostgres:
		repo, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}

// Publisher returns the event publisher, or a nil interface when events are disabled.
func (b *Backend) Publisher() services.EventPublisher {
	if b.Events == nil {
		return nil
	}
	return b.Events
}

// Checks returns the readiness checks of the configured dependencies.
func (b *Backend) Checks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"storage": b.Store.Ping,
	}
	if b.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.Redis.Ping(ctx).Err() }
	}
	if b.Events != nil {
		checks["amqp"] = b.Events.Ping
	}
	return checks
}

// Close releases every resource and reports all failures together.
func (b *Backend) Close() error {
	var errs []error
	b.Caches.Stop()
	if b.Events != nil {
		if err := b.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
