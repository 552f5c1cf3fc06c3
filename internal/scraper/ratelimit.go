package scraper

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum spacing between requests on each lane.
// Lanes are independent; a slow lane never delays the others.
type RateLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	next map[int]time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		next:     make(map[int]time.Time),
	}
}

// WaitSlot blocks until the lane's next slot arrives, then claims it.
// It returns early with the context error if ctx is cancelled.
func (r *RateLimiter) WaitSlot(ctx context.Context, lane int) error {
	r.mu.Lock()
	now := time.Now()
	slot := r.next[lane]
	if slot.Before(now) {
		slot = now
	}
	r.next[lane] = slot.Add(r.interval)
	r.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
