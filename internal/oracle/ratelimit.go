package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimited decorates a Client with a token-bucket rate limiter so a burst
// of parse requests cannot blow through the provider's quota.
type rateLimited struct {
	inner   Client
	limiter *rateLimiter
}

// RateLimited wraps a client with a limit of requestsPerMinute calls.
func RateLimited(c Client, requestsPerMinute int) Client {
	return &rateLimited{
		inner:   c,
		limiter: newRateLimiter(requestsPerMinute),
	}
}

func (r *rateLimited) Generate(ctx context.Context, prompt, system string, wantJSON bool) (string, error) {
	if err := r.limiter.wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, prompt, system, wantJSON)
}

// rateLimiter implements a simple token bucket.
type rateLimiter struct {
	lastRefill time.Time
	tokens     int
	capacity   int
	refillRate int
	mu         sync.Mutex
}

// newRateLimiter creates a rate limiter with the specified requests per minute.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	return &rateLimiter{
		tokens:     requestsPerMinute,
		capacity:   requestsPerMinute,
		refillRate: requestsPerMinute,
		lastRefill: time.Now(),
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// tryAcquire attempts to acquire a token without blocking, refilling the
// bucket lazily based on elapsed time.
func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	refill := int(elapsed / (time.Minute / time.Duration(rl.refillRate)))
	if refill > 0 {
		rl.tokens += refill
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}
