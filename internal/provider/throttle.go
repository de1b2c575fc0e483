package provider

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between submissions from one adapter
// instance. The check-and-reserve is mutex-guarded so two concurrent calls
// cannot both pass the interval check; each caller reserves its own slot and
// sleeps until it.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle creates a throttle with the given minimum inter-request
// interval. A non-positive interval disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until this caller's reserved submission slot arrives, or the
// context is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.interval <= 0 {
		return nil
	}

	t.mu.Lock()
	now := t.now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	if d := slot.Sub(now); d > 0 {
		return t.sleep(ctx, d)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
