package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/accountpulse/accountpulse/internal/scoring"
)

// ScoreCache memoizes scoring results in Redis, keyed by a digest of
// the metric set. The engine itself stays pure; caching lives entirely
// at this layer.
type ScoreCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   int64
	misses int64
	errors int64
}

// NewScoreCache connects to Redis with the pool settings we run in
// production. A zero ttl falls back to 5 minutes.
func NewScoreCache(addr, password string, db int, ttl time.Duration) *ScoreCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     50,
		MinIdleConns: 5,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ScoreCache{
		client: client,
		prefix: "accountpulse:score",
		ttl:    ttl,
	}
}

// Key derives the cache key for a metric set: SHA-256 over its JSON
// encoding. Struct encoding order is fixed, so identical sets always
// produce the same digest.
func Key(m scoring.MetricSet) string {
	data, _ := json.Marshal(m)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get retrieves a cached score result. The second return value reports
// whether the key was found.
func (c *ScoreCache) Get(ctx context.Context, key string) (scoring.ScoreResult, bool) {
	data, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return scoring.ScoreResult{}, false
	}
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return scoring.ScoreResult{}, false
	}

	var result scoring.ScoreResult
	if err := json.Unmarshal(data, &result); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return scoring.ScoreResult{}, false
	}
	atomic.AddInt64(&c.hits, 1)
	return result, true
}

// Set stores a score result. Failures are reported but scoring does not
// depend on them.
func (c *ScoreCache) Set(ctx context.Context, key string, result scoring.ScoreResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal score result: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+":"+key, data, c.ttl).Err(); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Clear removes every cached score.
func (c *ScoreCache) Clear(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, c.prefix+":*").Result()
	if err != nil {
		return fmt.Errorf("redis keys failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Stats returns hit/miss/error counters for the admin endpoint.
func (c *ScoreCache) Stats() map[string]interface{} {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	return map[string]interface{}{
		"hits":     hits,
		"misses":   misses,
		"errors":   atomic.LoadInt64(&c.errors),
		"hit_rate": hitRate,
		"ttl":      c.ttl.String(),
	}
}

// Ping reports Redis reachability for health checks.
func (c *ScoreCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *ScoreCache) Close() error {
	return c.client.Close()
}
