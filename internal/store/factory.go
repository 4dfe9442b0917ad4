package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/matheuscscp/technews-auth/internal/config"
)

// New builds the configured KeyStore. The returned function releases its
// resources.
func New(ctx context.Context, conf *config.StoreConfig) (KeyStore, func(), error) {
	switch conf.Backend {
	case config.StoreBackendMemory:
		return NewMemoryStore(), func() {}, nil
	case config.StoreBackendFile:
		s, err := NewFileStore(conf.File.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.StoreBackendPostgres:
		s, err := NewPostgresStore(ctx, conf.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return NewRedisStore(client, conf.Redis.Prefix, conf.Redis.LockTTL), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", conf.Backend)
	}
}
