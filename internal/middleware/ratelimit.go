package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/dto/response"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether the request identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// InMemoryRateLimiter is a per-node token bucket per key
type InMemoryRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewInMemoryRateLimiter(r rate.Limit, burst int) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (l *InMemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow(), nil
}

// RedisRateLimiter is a sliding window shared by every node
type RedisRateLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

func NewRedisRateLimiter(client *redis.Client, requests int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	pipe := l.client.Pipeline()

	now := time.Now().UnixNano()
	windowStart := now - l.window.Nanoseconds()

	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: now,
	})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}

	return count <= int64(l.requests), nil
}

// RateLimitConfig represents rate limit configuration
type RateLimitConfig struct {
	Window  time.Duration
	KeyFunc func(*gin.Context) string
	Logger  *zap.Logger
}

// DefaultRateLimitConfig keys by user when authenticated, by IP otherwise
func DefaultRateLimitConfig(logger *zap.Logger) *RateLimitConfig {
	return &RateLimitConfig{
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			if userID := GetUserID(c); userID != "" {
				return fmt.Sprintf(cache.KeyRateLimitUser, userID)
			}
			return fmt.Sprintf(cache.KeyRateLimitIP, c.ClientIP())
		},
		Logger: logger,
	}
}

// RateLimitWithConfig rejects requests the limiter refuses with 429. Limiter
// errors let the request through.
func RateLimitWithConfig(limiter RateLimiter, config *RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			if config.Logger != nil {
				config.Logger.Warn("Rate limiter unavailable", zap.String("key", key), zap.Error(err))
			}
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
			response.Error(c, apperrors.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}

// APIRateLimit limits every API call to requests per minute across nodes
func APIRateLimit(client *redis.Client, requests int, logger *zap.Logger) gin.HandlerFunc {
	return RateLimitWithConfig(NewRedisRateLimiter(client, requests, time.Minute), DefaultRateLimitConfig(logger))
}

// SearchRateLimit throttles search submissions of one user. Each submission
// replaces the previous search, so bursts only churn the pool.
func SearchRateLimit(limiter RateLimiter, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return RateLimitWithConfig(limiter, &RateLimitConfig{
		Window: window,
		KeyFunc: func(c *gin.Context) string {
			if userID := GetUserID(c); userID != "" {
				return fmt.Sprintf(cache.KeyRateLimitSearch, userID)
			}
			return fmt.Sprintf(cache.KeyRateLimitIP, c.ClientIP())
		},
		Logger: logger,
	})
}
