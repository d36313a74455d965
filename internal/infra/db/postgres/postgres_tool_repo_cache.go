package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/metrics"
	red "rankblaze-entitlements/internal/infra/redis"
)

var _ repository.ToolRepository = (*toolRepoCacheDecorator)(nil)

const toolListKey = "tools:all"

// cachedTool is the Redis form of a tool. Token material stays sealed.
type cachedTool struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PriceMinor   int64     `json:"priceMinor"`
	ValidityDays int       `json:"validityDays"`
	Active       bool      `json:"active"`
	Kind         string    `json:"kind,omitempty"`
	Sealed       *string   `json:"sealed,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type toolRepoCacheDecorator struct {
	inner repository.ToolRepository
	cache red.RedisClient
	box   SecretBox
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewToolRepoCacheDecorator(inner repository.ToolRepository, cache red.RedisClient, box SecretBox, logger *zerolog.Logger) repository.ToolRepository {
	l := logger.With().Str("component", "tool_cache").Logger()
	return &toolRepoCacheDecorator{
		inner: inner,
		cache: cache,
		box:   box,
		ttl:   10 * time.Minute,
		log:   &l,
	}
}

func toolKey(id string) string { return fmt.Sprintf("tool:%s", id) }

func (d *toolRepoCacheDecorator) encode(t *model.Tool) (*cachedTool, error) {
	kind, sealed, err := sealPayload(d.box, t.Payload)
	if err != nil {
		return nil, err
	}
	return &cachedTool{
		ID: t.ID, Name: t.Name, PriceMinor: t.PriceMinor, ValidityDays: t.ValidityDays,
		Active: t.Active, Kind: kind, Sealed: sealed, UpdatedAt: t.UpdatedAt,
	}, nil
}

func (d *toolRepoCacheDecorator) decode(c *cachedTool) (*model.Tool, error) {
	p, err := openPayload(d.box, c.Kind, c.Sealed)
	if err != nil {
		return nil, err
	}
	return &model.Tool{
		ID: c.ID, Name: c.Name, PriceMinor: c.PriceMinor, ValidityDays: c.ValidityDays,
		Active: c.Active, Payload: p, UpdatedAt: c.UpdatedAt,
	}, nil
}

func (d *toolRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tool, error) {
	key := toolKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var c cachedTool
		if json.Unmarshal([]byte(val), &c) == nil {
			if t, derr := d.decode(&c); derr == nil {
				metrics.IncCacheRequest(metrics.CacheTool, "hit")
				return t, nil
			}
		}
	} else if err != redis.Nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest(metrics.CacheTool, "miss")
	t, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if c, eerr := d.encode(t); eerr == nil {
		bytes, _ := json.Marshal(c)
		if serr := d.cache.Set(ctx, key, bytes, d.ttl); serr != nil {
			d.log.Warn().Err(serr).Str("key", key).Msg("cache write failed")
		}
	}
	return t, nil
}

func (d *toolRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tool, error) {
	val, err := d.cache.Get(ctx, toolListKey)
	if err == nil {
		var cs []*cachedTool
		if json.Unmarshal([]byte(val), &cs) == nil {
			out := make([]*model.Tool, 0, len(cs))
			for _, c := range cs {
				t, derr := d.decode(c)
				if derr != nil {
					out = nil
					break
				}
				out = append(out, t)
			}
			if out != nil {
				metrics.IncCacheRequest(metrics.CacheToolList, "hit")
				return out, nil
			}
		}
	}

	metrics.IncCacheRequest(metrics.CacheToolList, "miss")
	tools, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		cs := make([]*cachedTool, 0, len(tools))
		for _, t := range tools {
			c, eerr := d.encode(t)
			if eerr != nil {
				return tools, nil
			}
			cs = append(cs, c)
		}
		bytes, _ := json.Marshal(cs)
		_ = d.cache.Set(ctx, toolListKey, bytes, d.ttl)
	}
	return tools, nil
}

// Writes go to the store first, then drop both cache keys.
func (d *toolRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, t *model.Tool) error {
	if err := d.inner.Save(ctx, tx, t); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, toolKey(t.ID), toolListKey); err != nil {
		d.log.Warn().Err(err).Str("tool_id", t.ID).Msg("cache invalidation failed")
	}
	return nil
}
