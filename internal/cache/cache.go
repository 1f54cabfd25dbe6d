package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jw6ventures/clinicgrid/internal/metrics"
)

const keyPrefix = "clinicgrid:layout:"

// LayoutCache stores computed day layouts in Redis. Every day has a
// generation counter that InvalidateDay bumps; layouts are keyed by the
// generation read before they were built, so a layout computed from data
// that a concurrent mutation has since changed is written under a key no
// reader will look up again. Entries for one day are also tracked in an
// index set so invalidation can drop them eagerly.
type LayoutCache struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewLayoutCache returns nil when client is nil; a nil cache misses on every
// Get and ignores writes.
func NewLayoutCache(client *redis.Client, ttl time.Duration) *LayoutCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LayoutCache{
		redis:  client,
		tracer: otel.Tracer("clinicgrid.internal.cache"),
		ttl:    ttl,
	}
}

func layoutKey(date string, gen int64, scope string) string {
	return keyPrefix + date + ":" + strconv.FormatInt(gen, 10) + ":" + scope
}

func indexKey(date string) string {
	return keyPrefix + date + ":index"
}

func generationKey(date string) string {
	return keyPrefix + date + ":gen"
}

// Generation returns the current generation of date, 0 when the day has
// never been invalidated. Read it before loading the data a layout is built
// from and pass it to Set.
func (c *LayoutCache) Generation(ctx context.Context, date string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	gen, err := c.redis.Get(ctx, generationKey(date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		metrics.CacheResult("error")
		return 0, fmt.Errorf("cache: get generation %s: %w", date, err)
	}
	return gen, nil
}

// Get decodes the layout cached for date, gen and scope into dest. ok is false on a miss.
func (c *LayoutCache) Get(ctx context.Context, date string, gen int64, scope string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	ctx, span := c.tracer.Start(ctx, "cache.layout.get")
	defer span.End()

	data, err := c.redis.Get(ctx, layoutKey(date, gen, scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheResult("miss")
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		metrics.CacheResult("error")
		return false, fmt.Errorf("cache: get layout %s/%s: %w", date, scope, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheResult("error")
		return false, fmt.Errorf("cache: decode layout %s/%s: %w", date, scope, err)
	}
	metrics.CacheResult("hit")
	return true, nil
}

// Set stores value as JSON under date, gen and scope.
func (c *LayoutCache) Set(ctx context.Context, date string, gen int64, scope string, value any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode layout: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "cache.layout.set")
	defer span.End()

	key := layoutKey(date, gen, scope)
	idx := indexKey(date)
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, idx, key)
	pipe.Expire(ctx, idx, c.ttl)
	// The counter must outlive every entry keyed by it.
	pipe.Expire(ctx, generationKey(date), 2*c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: set layout %s/%s: %w", date, scope, err)
	}
	return nil
}

// InvalidateDay bumps the generation of date and drops every cached scope.
func (c *LayoutCache) InvalidateDay(ctx context.Context, date string) error {
	if c == nil {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "cache.layout.invalidate")
	defer span.End()

	gen := generationKey(date)
	pipe := c.redis.TxPipeline()
	pipe.Incr(ctx, gen)
	pipe.Expire(ctx, gen, 2*c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: bump generation %s: %w", date, err)
	}

	idx := indexKey(date)
	keys, err := c.redis.SMembers(ctx, idx).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: list layouts for %s: %w", date, err)
	}
	keys = append(keys, idx)
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: invalidate %s: %w", date, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *LayoutCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
