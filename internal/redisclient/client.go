package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// Ping checks redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// CountInWindow increments the fixed-window counter for key and returns
// the count plus the remaining window. The expiry is set only when the
// key is created, so the window does not slide.
func (c *Client) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.redisdb.Incr(ctx, key).Result()

	if err != nil {
		return 0, 0, err
	}

	if count == 1 {
		err = c.redisdb.Expire(ctx, key, window).Err()

		if err != nil {
			return 0, 0, err
		}
	}

	ttl, err := c.redisdb.TTL(ctx, key).Result()

	if err != nil {
		return 0, 0, err
	}

	return count, ttl, nil
}
