package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/logger"
)

const connectAttempts = 3

// ConnectRedis opens the client shared by the cache, token revocation and
// the task queue, pinging until Redis answers or the attempts run out.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		ClientName: cfg.AppName,
	})

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = rdb.Ping(ctx).Result()
		cancel()
		if err == nil {
			logger.Log.Info("redis_connected", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
			return rdb, nil
		}
		logger.Log.Warn("redis_ping_failed", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
}

// DisconnectRedis closes c. A nil client is a no-op.
func DisconnectRedis(c *redis.Client) error {
	if c == nil {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	logger.Log.Info("redis_disconnected")
	return nil
}
