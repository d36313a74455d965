package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/ports/adapter"
)

var (
	_ adapter.Locker      = (*Locker)(nil)
	_ adapter.RateLimiter = (*RateLimiter)(nil)
)

// Locker is an in-process stand-in for the Redis locker. Same retry budget.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	tries int
	wait  time.Duration
}

type lease struct {
	token   string
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{held: map[string]lease{}, tries: 5, wait: 50 * time.Millisecond}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < l.tries; i++ {
		l.mu.Lock()
		cur, ok := l.held[key]
		if !ok || time.Now().After(cur.expires) {
			l.held[key] = lease{token: token, expires: time.Now().Add(ttl)}
			l.mu.Unlock()
			return token, nil
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	return "", domain.ErrReconcileInFlight
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}

// RateLimiter is a fixed-window counter kept in memory.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
}

type window struct {
	count int
	until time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: map[string]window{}}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, d time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	w := r.windows[key]
	if now.After(w.until) {
		w = window{until: now.Add(d)}
	}
	w.count++
	r.windows[key] = w
	return w.count <= limit, nil
}
