package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/activerow/activerow/internal/core"
)

// Cache stores resolved table schemas. Entries are populated lazily on first
// access and removed only by explicit invalidation, never silently; a schema
// migration within a running process requires an Invalidate or Clear call.
type Cache interface {
	// Get returns the cached schema for a table, or nil on a miss.
	Get(ctx context.Context, tableName string) (*core.Schema, error)

	// Put stores the schema for a table.
	Put(ctx context.Context, tableName string, schema *core.Schema) error

	// Invalidate removes the cached schema for a table.
	Invalidate(ctx context.Context, tableName string) error

	// Clear removes all cached schemas.
	Clear(ctx context.Context) error
}

// MemoryCache is a process-wide, in-memory schema cache.
type MemoryCache struct {
	mu      sync.RWMutex
	schemas map[string]*core.Schema
}

// NewMemoryCache creates a new in-memory schema cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		schemas: make(map[string]*core.Schema),
	}
}

// Get returns the cached schema for a table, or nil on a miss.
func (c *MemoryCache) Get(ctx context.Context, tableName string) (*core.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schemas[tableName], nil
}

// Put stores the schema for a table.
func (c *MemoryCache) Put(ctx context.Context, tableName string, schema *core.Schema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[tableName] = schema
	return nil
}

// Invalidate removes the cached schema for a table.
func (c *MemoryCache) Invalidate(ctx context.Context, tableName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.schemas, tableName)
	return nil
}

// Clear removes all cached schemas.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas = make(map[string]*core.Schema)
	return nil
}

// RedisCache is a schema cache backed by Redis, shared across processes.
// Schemas are stored as JSON under "<namespace>:schema:<table>" with a TTL.
type RedisCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	closed    bool
}

// NewRedisCache creates a Redis-backed schema cache and verifies the
// connection.
func NewRedisCache(addr, password string, db int, namespace string, ttl, dialTimeout time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if namespace == "" {
		namespace = "activerow"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}, nil
}

func (c *RedisCache) key(tableName string) string {
	return fmt.Sprintf("%s:schema:%s", c.namespace, tableName)
}

// Get returns the cached schema for a table, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, tableName string) (*core.Schema, error) {
	if c.closed {
		return nil, fmt.Errorf("schema cache is closed")
	}

	raw, err := c.client.Get(ctx, c.key(tableName)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema for %s: %w", tableName, err)
	}

	var schema core.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		// A corrupt entry behaves like a miss so the provider re-introspects.
		log.Printf("[SCHEMA] WARNING: Discarding unreadable cached schema for %s: %v", tableName, err)
		return nil, nil
	}
	return &schema, nil
}

// Put stores the schema for a table.
func (c *RedisCache) Put(ctx context.Context, tableName string, schema *core.Schema) error {
	if c.closed {
		return fmt.Errorf("schema cache is closed")
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", tableName, err)
	}
	if err := c.client.Set(ctx, c.key(tableName), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store schema for %s: %w", tableName, err)
	}
	return nil
}

// Invalidate removes the cached schema for a table.
func (c *RedisCache) Invalidate(ctx context.Context, tableName string) error {
	if c.closed {
		return fmt.Errorf("schema cache is closed")
	}
	if err := c.client.Del(ctx, c.key(tableName)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate schema for %s: %w", tableName, err)
	}
	return nil
}

// Clear removes all cached schemas in this cache's namespace.
func (c *RedisCache) Clear(ctx context.Context) error {
	if c.closed {
		return fmt.Errorf("schema cache is closed")
	}

	pattern := fmt.Sprintf("%s:schema:*", c.namespace)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear schema cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan schema cache keys: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// CachingProvider decorates a SchemaProvider with a Cache. Schemas are
// resolved from the underlying provider once per table and then served from
// the cache until invalidated.
type CachingProvider struct {
	provider core.SchemaProvider
	cache    Cache
}

// NewCachingProvider wraps a schema provider with a cache.
func NewCachingProvider(provider core.SchemaProvider, cache Cache) *CachingProvider {
	return &CachingProvider{
		provider: provider,
		cache:    cache,
	}
}

// GetTableSchema returns the schema for a table, consulting the cache first.
func (p *CachingProvider) GetTableSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	cached, err := p.cache.Get(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	schema, err := p.provider.GetTableSchema(ctx, tableName)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(ctx, tableName, schema); err != nil {
		// A cache write failure must not hide a successfully resolved schema.
		log.Printf("[SCHEMA] WARNING: Failed to cache schema for %s: %v", tableName, err)
	}
	return schema, nil
}

// Invalidate removes the cached schema for a table.
func (p *CachingProvider) Invalidate(ctx context.Context, tableName string) error {
	return p.cache.Invalidate(ctx, tableName)
}

// Clear removes all cached schemas.
func (p *CachingProvider) Clear(ctx context.Context) error {
	return p.cache.Clear(ctx)
}
