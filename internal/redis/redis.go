package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/hferret/shelfarr/internal/config"
)

// Client wraps the Redis client with additional functionality
type Client struct {
	*redis.Client
}

// Initialize creates and configures the Redis client
func Initialize(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	// Test the connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.Info("Redis client initialized successfully")
	return &Client{Client: rdb}, nil
}

// AcquireLock takes a best-effort distributed lock via SET NX. It returns
// true when this process holds the lock, so concurrent app instances do not
// run overlapping sweeps against the same clients.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// ReleaseLock drops a lock taken by AcquireLock.
func (c *Client) ReleaseLock(ctx context.Context, key string) error {
	return c.Del(ctx, key).Err()
}

// Health checks the Redis connection health
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Client.Close()
}

// Lock key constants
const (
	LockKeyDownloadSweep = "shelfarr:lock:download_sweep"
	LockKeyHealthCheck   = "shelfarr:lock:health_check"
	LockKeyImportScan    = "shelfarr:lock:import_scan"
)
