package adapter

import (
	"context"
	"time"
)

// Locker serializes work per key. TryLock returns domain.ErrReconcileInFlight
// when another holder keeps the key past the retry budget.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter counts hits per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
