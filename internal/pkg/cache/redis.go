package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-demo/matchroom/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis builds the client shared by the publisher, the hub relay, the
// API rate limiter and the janitor lock. It waits for Redis the same way
// database.NewPostgres waits for Postgres.
func NewRedis(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.GetAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
		ClientName:  "matchroom",
	})

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			break
		}
		if attempt >= attempts {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", attempt, err)
		}
		logger.Warn("Redis not ready, retrying",
			zap.String("addr", cfg.GetAddr()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * time.Second)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.GetAddr()),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize),
	)

	return client, nil
}

// Close logs pool counters before closing the client.
func Close(client *redis.Client, logger *zap.Logger) {
	stats := client.PoolStats()
	if err := client.Close(); err != nil {
		logger.Error("Error closing Redis connection", zap.Error(err))
		return
	}
	logger.Info("Redis connection closed",
		zap.Uint32("hits", stats.Hits),
		zap.Uint32("timeouts", stats.Timeouts),
	)
}

// Cache is the node-shared Redis state: janitor lock and health probe.
// Rate limit counters go through the raw client in middleware.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCache(client *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// SetNX takes key for expiration if nobody holds it. Matchmaker's janitor
// uses it so only one node sweeps expired searches per interval.
func (c *Cache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		c.logger.Warn("Redis lock failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Rate limit key formats
const (
	KeyRateLimitUser   = "matchroom:ratelimit:user:%s"   // {userID}
	KeyRateLimitIP     = "matchroom:ratelimit:ip:%s"     // {ip}
	KeyRateLimitSearch = "matchroom:ratelimit:search:%s" // {userID}
)
