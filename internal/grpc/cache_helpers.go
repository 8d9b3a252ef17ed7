package grpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
	maxTTLJitter        = 15 * time.Second
)

// addTTLJitter spreads expirations by up to ±10% of ttl, capped at
// maxTTLJitter, so keys written by one run do not expire together.
func addTTLJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	spread := min(ttl/10, maxTTLJitter)
	if spread <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(int64(2*spread))) - spread
}

func storeInBackground[T any](c Cacher, key string, ttl time.Duration, logger *zap.Logger, value T) {
	setCtx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
	defer cancel()

	ttlWithJitter := addTTLJitter(ttl)
	if err := c.Set(setCtx, key, value, ttlWithJitter); err != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("cache populated", zap.String("key", key), zap.Duration("ttl", ttlWithJitter))
}

// triggerBackgroundRefresh re-fetches key after a cache hit. Concurrent hits
// share one refresh.
func triggerBackgroundRefresh[T any](c Cacher, sf *singleflight.Group, key string, ttl time.Duration, logger *zap.Logger, fn FetchFunc[T]) {
	go func() {
		time.Sleep(time.Duration(rand.IntN(1000)) * time.Millisecond)

		_, _, _ = sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}
			storeInBackground(c, key, ttl, logger, value)
			return nil, nil
		})
	}()
}

// FindAndCache implements read-through caching with singleflight and
// refresh-ahead. Cache errors are treated as misses.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	var cached T
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		logger.Debug("cache hit", zap.String("key", key))
		triggerBackgroundRefresh(c, sf, key, ttl, logger, fn)
		return cached, nil
	case errors.Is(err, redis.Nil):
		logger.Debug("cache miss", zap.String("key", key))
	default:
		logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := sf.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		go storeInBackground(c, key, ttl, logger, value)
		return value, nil
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}
	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}
	return value, nil
}
