//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounter struct {
	counts  map[string]int64
	expired map[string]time.Duration
	incrErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expired: map[string]time.Duration{}}
}

func (f *fakeCounter) Ping(ctx context.Context) error { return nil }
func (f *fakeCounter) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (f *fakeCounter) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (f *fakeCounter) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.expired[key] = expiration
	return nil
}
func (f *fakeCounter) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeCounter) Close() error                                  { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		// --- Arrange ---
		fc := newFakeCounter()
		rl := NewRateLimiter(fc)
		key := "rate_limit:poll:ord_u1_t1_X"

		// --- Act & Assert ---
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, key, 3, time.Minute)
			if err != nil || !ok {
				t.Fatalf("call %d: expected allowed, got ok=%v err=%v", i+1, ok, err)
			}
		}
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected the fourth call to be rejected")
		}
		if fc.expired[key] != time.Minute {
			t.Errorf("expected window to be set once on first hit, got %v", fc.expired[key])
		}
	})

	t.Run("propagates counter errors", func(t *testing.T) {
		// --- Arrange ---
		fc := newFakeCounter()
		fc.incrErr = errors.New("connection refused")
		rl := NewRateLimiter(fc)

		// --- Act ---
		ok, err := rl.Allow(ctx, "k", 1, time.Minute)

		// --- Assert ---
		if err == nil || ok {
			t.Fatalf("expected error and not allowed, got ok=%v err=%v", ok, err)
		}
	})
}
