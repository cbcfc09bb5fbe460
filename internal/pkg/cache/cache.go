package cache

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PromptForge/internal/pkg/config"
)

// New creates the Redis client. An unreachable server is logged, not fatal:
// every Redis use in the service degrades to the database.
func New(cfg config.CacheConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("Could not connect to cache at %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("Successfully connected to cache: %s", pong)
	}
	return client
}
