// Package cache is an optional Redis front for the persisted key registry.
// The warehouse never depends on it being up: every operation degrades to a
// no-op when the client is unavailable.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"empleo-dw/internal/config"
)

type Redis struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration

	warnedUnavailable atomic.Bool
}

// NewRedis connects using cfg. An empty Addr, or a failed ping, yields a
// bypassing instance rather than an error.
func NewRedis(cfg config.RedisConfig, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Addr == "" {
		return &Redis{client: nil, log: log, ttl: cfg.TTL}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, bypassing registry cache", "err", err)
		_ = client.Close()
		return &Redis{client: nil, log: log, ttl: cfg.TTL}
	}

	return &Redis{client: client, log: log, ttl: cfg.TTL}
}

func (r *Redis) Close() error {
	if r.isUnavailable() {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) isUnavailable() bool {
	return r == nil || r.client == nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r == nil || r.log == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.log.Warn("redis unavailable, bypassing registry cache", "err", err)
	}
}

// GetKeys fetches cached surrogate keys for the given cache keys. Missing or
// unparsable entries are simply absent from the result.
func (r *Redis) GetKeys(ctx context.Context, keys []string) map[string]int64 {
	out := map[string]int64{}
	if r.isUnavailable() || len(keys) == 0 {
		return out
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.warnUnavailableOnce(err)
		}
		return out
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out[keys[i]] = n
	}
	return out
}

// SetKeys caches surrogate keys with the configured TTL, best effort.
func (r *Redis) SetKeys(ctx context.Context, entries map[string]int64) {
	if r.isUnavailable() || len(entries) == 0 {
		return
	}

	ttl := r.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	pipe := r.client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, k, strconv.FormatInt(v, 10), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.warnUnavailableOnce(err)
	}
}
