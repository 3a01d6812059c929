// Package cache provides the Redis-backed read cache for API and twin lookups.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
)

const keyNamespace = "bio_supply"

// TTL tiers, shortest for mutable API aggregates, longest for analytics results.
const (
	TTLAPI       = 30 * time.Second
	TTLDB        = 60 * time.Second
	TTLAnalytics = 120 * time.Second
)

const pingTimeout = 5 * time.Second

// Cache wraps a Redis client. A disabled cache ignores writes and always misses.
type Cache struct {
	client  *redis.Client
	enabled bool
	logger  *log.Logger
}

// New connects to Redis at addr. An empty addr or a failed ping yields a
// disabled cache so the service keeps serving from the database.
func New(addr string, db int, logger *log.Logger) *Cache {
	if addr == "" {
		return &Cache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Printf("cache disabled, redis ping failed: %v", err)
		}
		_ = client.Close()
		return &Cache{logger: logger}
	}
	return &Cache{client: client, enabled: true, logger: logger}
}

// Enabled reports whether a Redis backend is connected.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Key builds a namespaced cache key.
func Key(prefix, id string) string {
	return keyNamespace + ":" + prefix + ":" + id
}

// GetJSON loads a cached value into target. It reports whether the key was found.
func (c *Cache) GetJSON(ctx context.Context, key string, target any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		metrics.IncCacheRequest(metrics.CacheMiss)
		return false, nil
	}
	if err != nil {
		metrics.IncCacheRequest(metrics.CacheMiss)
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		metrics.IncCacheRequest(metrics.CacheMiss)
		return false, err
	}
	metrics.IncCacheRequest(metrics.CacheHit)
	return true, nil
}

// SetJSON stores a value under key for the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// ClearPrefix removes every key under the namespaced prefix and returns the count.
func (c *Cache) ClearPrefix(ctx context.Context, prefix string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	pattern := keyNamespace + ":" + prefix + ":*"
	if prefix == "" {
		pattern = keyNamespace + ":*"
	}

	var cleared int64
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, iter.Err()
}

// Clear removes every key in the namespace.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	return c.ClearPrefix(ctx, "")
}

// Stats summarizes cache health for the stats endpoint.
type Stats struct {
	Enabled    bool    `json:"enabled"`
	Keys       int64   `json:"keys"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	UsedMemory string  `json:"used_memory"`
}

// Stats reads hit counters and memory usage from the Redis INFO command.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	if !c.Enabled() {
		return Stats{}, nil
	}
	stats := Stats{Enabled: true}

	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return stats, err
	}
	stats.Hits = parseInfoInt(info, "keyspace_hits")
	stats.Misses = parseInfoInt(info, "keyspace_misses")
	stats.HitRate = hitRate(stats.Hits, stats.Misses)

	memory, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return stats, err
	}
	stats.UsedMemory = parseInfoValue(memory, "used_memory_human")

	keys, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return stats, err
	}
	stats.Keys = keys
	return stats, nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func parseInfoValue(info, field string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if value, ok := strings.CutPrefix(line, field+":"); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func parseInfoInt(info, field string) int64 {
	value := parseInfoValue(info, field)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*100*100) / 100
}
