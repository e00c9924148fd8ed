// Package bootstrap selects the store, connects Redis and seeds demo data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stackit/internal/cache"
	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/middleware"
	"stackit/internal/repository"
	"stackit/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo seeds an empty durable store with the embedded fixture,
	// in addition to SEED_DEMO_DATA.
	SeedDemo bool
}

// Runtime is what the server needs from the outside world.
type Runtime struct {
	Store *repository.Store
	Redis *redis.Client
	// DB is nil when running on the in-memory store.
	DB *gorm.DB
}

// Close releases the database connection. Redis is owned by the server.
func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return database.Close(r.DB)
}

// InitRuntime connects the database and Redis. An unreachable database is
// replaced by a seeded in-memory store when cfg allows the fallback.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	db, err := database.Connect(cfg)
	switch {
	case err == nil:
		rt.DB = db
		rt.Store = repository.NewGormStore(db)
	case cfg.FallbackToMemory():
		middleware.Logger.Warn("database unavailable, serving from the in-memory store; data will not survive a restart",
			slog.String("driver", cfg.DBDriver),
			slog.String("error", err.Error()),
		)
		rt.Store = repository.NewMemoryStore()
		if _, err := seed.Seed(ctx, rt.Store); err != nil {
			return nil, fmt.Errorf("seed in-memory store: %w", err)
		}
	default:
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if rt.Store.Durable() && (opts.SeedDemo || cfg.SeedDemoData) {
		res, err := seed.Seed(ctx, rt.Store)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("seed demo data: %w", err), rt.Close())
		}
		if !res.Skipped {
			middleware.Logger.Info("demo data seeded",
				slog.Int("users", len(res.Users)),
				slog.Int("questions", len(res.Questions)),
				slog.Int("answers", len(res.Answers)),
			)
		}
	}

	// A nil client means Redis is unreachable; the server degrades without it.
	cache.InitRedis(cfg.RedisURL)
	rt.Redis = cache.GetClient()

	middleware.Logger.Info("runtime ready",
		slog.String("store", rt.Store.Kind()),
		slog.Bool("durable", rt.Store.Durable()),
		slog.Bool("redis", rt.Redis != nil),
	)
	return rt, nil
}
