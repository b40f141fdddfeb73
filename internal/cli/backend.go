package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/config"
	"school-quiz-service/internal/grading"
	"school-quiz-service/internal/infra/memory"
	pgloader "school-quiz-service/internal/infra/postgres"
	rediscache "school-quiz-service/internal/infra/redis"
	"school-quiz-service/internal/infra/sqlstore"
)

// backend holds the wired services plus whatever needs closing on exit.
type backend struct {
	attempts *app.AttemptService
	catalog  *app.CatalogService
	engine   *grading.Engine
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// catalogCache is what both cache flavours provide.
type catalogCache interface {
	app.CatalogRepository
	app.CatalogInvalidator
}

// newBackend picks storage from cfg.Database.Driver: postgres or sqlite go
// through bun (and postgres reads the catalog over pgx), empty keeps
// everything in memory. Redis, when configured, fronts the catalog.
func newBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (*backend, error) {
	b := &backend{}

	var (
		loader   app.CatalogLoader
		writer   app.CatalogWriter
		attempts app.AttemptRepository
	)

	switch cfg.Database.Driver {
	case "":
		log.Warn().Msg("no database configured, using in-memory stores")
		store := memory.NewCatalogStore(nil)
		loader, writer, attempts = store, store, memory.NewAttemptStore()
	default:
		db, err := openMigrated(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { db.Close() })

		store := sqlstore.New(db)
		loader, writer, attempts = store, store, store

		if sqlstore.Driver(cfg.Database.Driver) == sqlstore.DriverPostgres {
			pool, err := pgxpool.Connect(ctx, cfg.Database.URL)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("connect pgx pool: %w", err)
			}
			b.closers = append(b.closers, pool.Close)
			loader = pgloader.NewCatalogLoader(pool)
		}
	}

	ttl := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var cache catalogCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.closers = append(b.closers, func() { client.Close() })
		cache = rediscache.NewCatalogCache(client, loader, ttl, log)
	} else {
		cache = memory.NewCatalogCache(loader, ttl)
	}

	b.engine = grading.NewEngine(grading.WithLogger(log))
	b.attempts = app.NewAttemptService(cache, attempts, b.engine, log)
	b.catalog = app.NewCatalogService(writer, cache, b.engine, log)
	return b, nil
}

func openMigrated(ctx context.Context, cfg config.Config) (*bun.DB, error) {
	db, err := sqlstore.Open(ctx, sqlstore.Driver(cfg.Database.Driver), cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
