package auth

import (
	"context"
	"time"

	"marketgateway/pkg/cache"

	"go.uber.org/zap"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a per-key fixed-window counter kept in the cache store, so
// all gateway instances share it.
type RateLimiter struct {
	cache  cache.Store
	prefix string
	window time.Duration
	max    int
	logger *zap.Logger
}

func NewRateLimiter(store cache.Store, prefix string, window time.Duration, max int, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		cache:  store,
		prefix: prefix,
		window: window,
		max:    max,
		logger: log.Named("ratelimit"),
	}
}

// Allow counts one attempt for key. Cache failures let the attempt through.
func (r *RateLimiter) Allow(ctx context.Context, key string) Decision {
	n, left, err := r.cache.Incr(ctx, r.prefix+key, r.window)
	if err != nil {
		r.logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return Decision{Allowed: true, Limit: r.max, Remaining: r.max}
	}

	remaining := r.max - int(n)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: n <= int64(r.max), Limit: r.max, Remaining: remaining}
	if !d.Allowed {
		d.RetryAfter = left
	}
	return d
}
