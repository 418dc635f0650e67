package coach

import (
	"context"
	"fmt"
	"log/slog"

	"InterviewCoach/internal/config"
	"InterviewCoach/internal/sessionstore"
	"InterviewCoach/internal/sessionstore/memory"
	"InterviewCoach/internal/sessionstore/redis"
	"InterviewCoach/internal/sessionstore/sqlite"
	"InterviewCoach/internal/telemetry"
)

// OpenStore opens the configured session document store
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (sessionstore.Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		db, err := telemetry.InitDB(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return sqlite.New(db), nil
	case config.StoreRedis:
		client, err := redis.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return redis.New(client, cfg.Redis.TTL, logger), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}
