package limiters

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type TokenBucketConfig struct {
	// Every is the refill interval for one token.
	Every time.Duration
	Burst int
	// IdleTTL evicts buckets that have not been touched for this long.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucket is an in-process keyed limiter for deployments without Redis,
// such as single-node demos. Buckets are evicted lazily on access.
type TokenBucket struct {
	mu      sync.Mutex
	config  TokenBucketConfig
	buckets map[string]*bucket
	now     func() time.Time
}

func NewTokenBucket(cfg TokenBucketConfig, now func() time.Time) *TokenBucket {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{
		config:  cfg,
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Consume takes one token for key at the limiter's current time.
func (l *TokenBucket) Consume(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictIdle(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.config.Every), l.config.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1), nil
}

func (l *TokenBucket) evictIdle(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.config.IdleTTL {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
