package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// PerSecond builds a limit of rate requests per second
func PerSecond(rate, burst int) Limit {
	return Limit{Rate: rate, Period: time.Second, Burst: burst}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter implements RateLimiter using Redis, shared by all replicas
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter creates a new RedisRateLimiter
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

// Allow checks if the request is allowed
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// MemoryRateLimiter keeps one token bucket per key inside the process
type MemoryRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time // 两次清理空闲 bucket 至少间隔 ttl
}

type visitor struct {
	limiter  *rate.Limiter
	limit    Limit
	lastSeen time.Time
}

// NewMemoryRateLimiter creates a limiter whose idle buckets are evicted after ttl
func NewMemoryRateLimiter(ttl time.Duration) *MemoryRateLimiter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryRateLimiter{
		visitors: make(map[string]*visitor),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow checks if the request is allowed
func (m *MemoryRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 || limit.Burst <= 0 {
		return nil, fmt.Errorf("invalid rate limit %+v", limit)
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(now)

	v, ok := m.visitors[key]
	if !ok || v.limit != limit {
		every := rate.Every(limit.Period / time.Duration(limit.Rate))
		v = &visitor{limiter: rate.NewLimiter(every, limit.Burst), limit: limit}
		m.visitors[key] = v
	}
	v.lastSeen = now

	interval := limit.Period / time.Duration(limit.Rate)
	if v.limiter.AllowN(now, 1) {
		remaining := int(v.limiter.TokensAt(now))
		return &Result{
			Allowed:    true,
			Remaining:  remaining,
			ResetAfter: time.Duration(limit.Burst-remaining) * interval,
		}, nil
	}

	missing := 1 - v.limiter.TokensAt(now)
	return &Result{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: time.Duration(missing * float64(interval)),
		ResetAfter: time.Duration(limit.Burst) * interval,
	}, nil
}

func (m *MemoryRateLimiter) evict(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	m.nextSweep = now.Add(m.ttl)
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) > m.ttl {
			delete(m.visitors, key)
		}
	}
}
