package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a cached extraction stays valid.
const DefaultCacheTTL = 15 * time.Minute

// cacheKeyPrefix namespaces extraction entries in redis.
const cacheKeyPrefix = "extraction:"

// TextExtractor is the extraction surface the cache decorates.
type TextExtractor interface {
	Extract(ctx context.Context, text string) (*AttributeSet, error)
}

// RedisCache stores extraction results keyed by a hash of the query text.
// It is stateless to the pipeline: any cache failure degrades to a miss.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache. A non-positive TTL uses the default.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// cacheKey hashes the normalized query text.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached set for the text, or found=false on miss or error.
func (c *RedisCache) Get(ctx context.Context, text string) (*AttributeSet, bool) {
	data, err := c.client.Get(ctx, cacheKey(text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("extraction cache read failed", "error", err)
		}
		return nil, false
	}

	var set AttributeSet
	if err := json.Unmarshal(data, &set); err != nil {
		c.logger.Warn("extraction cache entry corrupt", "error", err)
		return nil, false
	}
	return &set, true
}

// Put stores the set for the text. Failures are logged, never surfaced.
func (c *RedisCache) Put(ctx context.Context, text string, set *AttributeSet) {
	data, err := json.Marshal(set)
	if err != nil {
		c.logger.Warn("extraction cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(text), data, c.ttl).Err(); err != nil {
		c.logger.Warn("extraction cache write failed", "error", err)
	}
}

// Cache is the lookup surface CachedExtractor needs.
type Cache interface {
	Get(ctx context.Context, text string) (*AttributeSet, bool)
	Put(ctx context.Context, text string, set *AttributeSet)
}

// CachedExtractor decorates a TextExtractor with a cache. Only successful
// extractions are cached; failures always reach the caller.
type CachedExtractor struct {
	inner TextExtractor
	cache Cache
}

// NewCachedExtractor wraps inner with cache.
func NewCachedExtractor(inner TextExtractor, cache Cache) *CachedExtractor {
	return &CachedExtractor{inner: inner, cache: cache}
}

// Extract returns the cached set when present, otherwise delegates and
// caches the result.
func (e *CachedExtractor) Extract(ctx context.Context, text string) (*AttributeSet, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	if set, ok := e.cache.Get(ctx, text); ok {
		return set, nil
	}

	set, err := e.inner.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Put(ctx, text, set)
	return set, nil
}
