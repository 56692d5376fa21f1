package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitConfig holds the configuration for request rate limiting.
type RateLimitConfig struct {
	Period time.Duration
	Limit  int64

	// RedisAddr switches from in-process to shared Redis counters,
	// for multi-instance deployments.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewRateLimiter creates a rate limiting middleware keyed by client IP.
func NewRateLimiter(config RateLimitConfig) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: config.Period,
		Limit:  config.Limit,
	}

	var limiterStore limiter.Store
	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.RedisAddr, err)
		}

		var err error
		limiterStore, err = limiterRedis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:          "ratelimit",
			CleanUpInterval: 5 * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
	} else {
		limiterStore = memory.NewStore()
	}

	instance := limiter.New(limiterStore, rate)

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
		})
		c.Abort()
	})), nil
}
