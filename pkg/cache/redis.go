package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/pkg/config"
)

const pingTimeout = 3 * time.Second

// Connect opens the read-cache client. It returns a nil client when caching is
// switched off or Redis is unreachable; callers treat nil as "cache disabled".
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil || !cfg.Cache.Enabled {
		logger.Info("read cache disabled")
		return nil
	}

	client := redis.NewClient(Options(cfg.Redis))
	if err := Ping(ctx, client); err != nil {
		logger.Warn("redis unavailable, continuing without cache", zap.String("addr", Addr(cfg.Redis)), zap.Error(err))
		_ = client.Close()
		return nil
	}
	logger.Info("read cache connected", zap.String("addr", Addr(cfg.Redis)), zap.Int("db", cfg.Redis.DB))
	return client
}

// Options maps the Redis section of the config onto client options.
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         Addr(cfg),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Addr renders host:port.
func Addr(cfg config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Ping checks the client within a short deadline. A nil client is healthy.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}
