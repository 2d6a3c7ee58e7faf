// Package cache implements the single-flight response cache of the advisor
// router: an in-process LRU with per-entry TTL, an optional Redis tier, and
// at most one in-flight computation per key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"academic-advisor/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const DefaultRedisPrefix = "advisor:resp:"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type Config struct {
	MaxEntries int
	// ComputeTimeout bounds a computation once it is detached from the
	// caller that started it.
	ComputeTimeout time.Duration
	RedisPrefix    string
}

// ComputeFunc produces a response on a cache miss. Degraded responses are
// returned to every waiter but never stored.
type ComputeFunc func(ctx context.Context) (*models.Response, error)

type ResponseCache struct {
	cfg    Config
	l1     *LRU[*models.Response]
	redis  *redis.Client
	group  singleflight.Group
	logger Logger
}

type flightResult struct {
	resp *models.Response
	hit  bool
}

// New creates a cache. rdb may be nil to run without the Redis tier.
func New(cfg Config, rdb *redis.Client, log Logger) *ResponseCache {
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = DefaultRedisPrefix
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = 90 * time.Second
	}
	return &ResponseCache{
		cfg:    cfg,
		l1:     NewLRU[*models.Response](cfg.MaxEntries, 0),
		redis:  rdb,
		logger: log,
	}
}

// GetOrCompute returns the cached response for key or runs compute, sharing
// one computation among concurrent callers. hit reports whether the answer
// came from storage. ttl <= 0 deduplicates without storing.
//
// The computation is detached from ctx: a caller that gives up returns
// ctx.Err() while the computation completes for the remaining waiters.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (*models.Response, bool, error) {
	if resp, ok := c.l1.Get(key); ok {
		return resp.Clone(), true, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if resp, ok := c.l1.Get(key); ok {
			return flightResult{resp: resp, hit: true}, nil
		}

		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ComputeTimeout)
		defer cancel()

		if resp, remaining, ok := c.getRemote(flightCtx, key); ok {
			// The L1 copy must not outlive the Redis entry.
			if remaining > ttl {
				remaining = ttl
			}
			if remaining > 0 {
				c.l1.Set(key, resp, remaining)
			}
			return flightResult{resp: resp, hit: true}, nil
		}

		resp, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errors.New("compute returned no response")
		}
		if ttl > 0 && !resp.Degraded {
			c.l1.Set(key, resp, ttl)
			c.setRemote(flightCtx, key, resp, ttl)
		}
		return flightResult{resp: resp}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		fr := res.Val.(flightResult)
		return fr.resp.Clone(), fr.hit, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate drops one key from both tiers.
func (c *ResponseCache) Invalidate(ctx context.Context, key string) int {
	n := 0
	if c.l1.Delete(key) {
		n = 1
	}
	if c.redis != nil {
		deleted, err := c.redis.Del(ctx, c.cfg.RedisPrefix+key).Result()
		if err != nil {
			c.logger.Warn("redis invalidate failed", map[string]interface{}{"key": key, "error": err.Error()})
		} else if deleted > 0 {
			n = 1
		}
	}
	return n
}

// InvalidatePrefix drops every key starting with prefix from both tiers and
// returns how many distinct keys were removed.
func (c *ResponseCache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	removed := c.l1.DeletePrefix(prefix)
	if c.redis == nil {
		return removed, nil
	}

	var (
		cursor  uint64
		remote  int
		pattern = c.cfg.RedisPrefix + prefix + "*"
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			deleted, err := c.redis.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			remote += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	// Keys usually live in both tiers; report the larger side.
	if remote > removed {
		removed = remote
	}
	return removed, nil
}

func (c *ResponseCache) Len() int { return c.l1.Len() }

// getRemote reads key from Redis together with its remaining lifetime. A
// remaining lifetime <= 0 means the entry may be served once but not copied
// into L1.
func (c *ResponseCache) getRemote(ctx context.Context, key string) (*models.Response, time.Duration, bool) {
	if c.redis == nil {
		return nil, 0, false
	}
	redisKey := c.cfg.RedisPrefix + key
	val, err := c.redis.Get(ctx, redisKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return nil, 0, false
	}

	var resp models.Response
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, 0, false
	}

	remaining, err := c.redis.PTTL(ctx, redisKey).Result()
	if err != nil {
		c.logger.Warn("redis pttl failed", map[string]interface{}{"key": key, "error": err.Error()})
		return &resp, 0, true
	}
	if remaining == -1 {
		// Stored without expiry; the caller's ttl caps it.
		return &resp, time.Duration(math.MaxInt64), true
	}
	return &resp, remaining, true
}

func (c *ResponseCache) setRemote(ctx context.Context, key string, resp *models.Response, ttl time.Duration) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.cfg.RedisPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
