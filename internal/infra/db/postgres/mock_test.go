//go:build !integration

package postgres

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
	red "rankblaze-entitlements/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerToolRepo mocks the database repository that the tool decorator wraps.
type mockInnerToolRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, t *model.Tool) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Tool, error)
	ListAllFunc  func(ctx context.Context, tx repository.Tx) ([]*model.Tool, error)
}

func (m *mockInnerToolRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tool) error {
	return m.SaveFunc(ctx, tx, t)
}
func (m *mockInnerToolRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tool, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerToolRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tool, error) {
	return m.ListAllFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

// reverseBox is a reversible stand-in for the AES box.
type reverseBox struct{}

func (reverseBox) Encrypt(s string) (string, error) { return "sealed:" + reverse(s), nil }
func (reverseBox) Decrypt(s string) (string, error) { return reverse(strings.TrimPrefix(s, "sealed:")), nil }

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
