package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimiterRedisUnavailable = errors.New("limiter redis unavailable")

type FixedWindowConfig struct {
	// Namespace prefixes every Redis key, e.g. "apri" for reset requests.
	Namespace string
	Limit     int
	Window    time.Duration
}

// FixedWindow accepts at most Limit consumptions per key per Window. The
// window starts at the first consumption for a key.
type FixedWindow struct {
	redis  redis.UniversalClient
	config FixedWindowConfig
}

func NewFixedWindow(redisClient redis.UniversalClient, cfg FixedWindowConfig) *FixedWindow {
	return &FixedWindow{
		redis:  redisClient,
		config: cfg,
	}
}

// Consume counts one request for key and reports whether it is within the
// limit. A nil receiver accepts everything.
func (l *FixedWindow) Consume(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}

	redisKey := l.config.Namespace + ":" + key
	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterRedisUnavailable, err)
		}
	}

	return count <= int64(l.config.Limit), nil
}

// Reset forgets the counter for key.
func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.config.Namespace+":"+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterRedisUnavailable, err)
	}
	return nil
}
