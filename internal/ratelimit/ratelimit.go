package ratelimit

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"prism.app/licensing/internal/logger"
	"prism.app/licensing/storage"
)

type RateLimit interface {
	Allow(ctx context.Context, addr string) bool
}

// FixedWindowLimiter counts requests per address in a fixed window, with the
// counters kept in the Store so that every authority instance shares them.
// The underlying increment is best-effort (see Store.IncrCounter): bursts can
// slightly under-count, which bounds abuse approximately rather than exactly.
type FixedWindowLimiter struct {
	maxRequests int
	window      time.Duration
	store       storage.Store

	allowed atomic.Int64
	denied  atomic.Int64
}

func New(store storage.Store, maxRequests int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		store:       store,
	}
}

func (rl *FixedWindowLimiter) Allow(ctx context.Context, addr string) bool {
	if rl.maxRequests == 0 {
		rl.denied.Inc()
		return false
	}

	count, err := rl.store.IncrCounter(ctx, storage.CounterPrefix+addr, rl.window)
	if err != nil {
		// Fail open: a broken counter must not take validation down.
		logger.Error("Rate limit counter unavailable", map[string]interface{}{
			"addr":  addr,
			"error": err.Error(),
		})
		rl.allowed.Inc()
		return true
	}

	if count > rl.maxRequests {
		rl.denied.Inc()
		return false
	}

	rl.allowed.Inc()
	return true
}

// Stats reports how many requests this instance allowed and denied.
func (rl *FixedWindowLimiter) Stats() (allowed, denied int64) {
	return rl.allowed.Load(), rl.denied.Load()
}
