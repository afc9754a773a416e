package comparison

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores the latest comparison snapshot.
type Cache interface {
	// Set stores a snapshot.
	Set(ctx context.Context, result *Result) error

	// Get returns the stored snapshot, or nil when none exists.
	Get(ctx context.Context) (*Result, error)

	// Close releases cache resources.
	Close() error
}

// MemoryCache keeps the snapshot in process memory.
type MemoryCache struct {
	mu     sync.RWMutex
	result *Result
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Set(ctx context.Context, result *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
	return nil
}

func (c *MemoryCache) Get(ctx context.Context) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result, nil
}

func (c *MemoryCache) Close() error {
	return nil
}

// RedisCache persists the snapshot in Redis so restarts and replicas
// serve the last computed comparison immediately.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. ttl of zero means no expiry.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisCache{
		client: client,
		key:    "raglab:comparison:snapshot",
		ttl:    ttl,
	}, nil
}

func (c *RedisCache) Set(ctx context.Context, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}

	return nil
}

func (c *RedisCache) Get(ctx context.Context) (*Result, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	return &result, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
