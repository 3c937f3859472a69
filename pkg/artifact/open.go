package artifact

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fraudml/pkg/config"
)

// Open returns the store selected by cfg.ArtifactBackend. The close
// function releases the backend connection, if any.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.ArtifactBackend {
	case "", "file":
		return NewFileStore(cfg.ModelDir), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, ""), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown artifact backend %q", cfg.ArtifactBackend)
	}
}
