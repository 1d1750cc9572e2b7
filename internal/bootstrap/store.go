package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/config"
	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/database/firestore"
	"github.com/wizdm/studio-backend/internal/database/memory"
	"github.com/wizdm/studio-backend/internal/database/postgres"
	"github.com/wizdm/studio-backend/internal/database/redis"
)

// OpenStore connects the configured backend. The returned close function
// releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config, fb *auth.FirebaseClients, log zerolog.Logger) (*database.Store, func(), error) {
	backend, closeFn, err := openBackend(ctx, cfg, fb)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("backend", cfg.Store.Backend).Msg("document store ready")
	return database.New(backend, database.WithLogger(log)), closeFn, nil
}

func openBackend(ctx context.Context, cfg *config.Config, fb *auth.FirebaseClients) (database.Backend, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.New(), noop, nil

	case config.StoreFirestore:
		if fb == nil || fb.Firestore == nil {
			return nil, nil, fmt.Errorf("firestore store needs Firebase credentials")
		}
		return firestore.New(fb.Firestore), noop, nil

	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Store.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return redis.New(client, cfg.Store.RedisPrefix), func() { _ = client.Close() }, nil

	case config.StorePostgres:
		pool, err := openPostgres(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool, cfg.Store.PollInterval), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
