package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	rateKeyPrefix   = "rate:"
	surchargesKey   = rateKeyPrefix + "surcharges"
	areaRateKeyFmt  = rateKeyPrefix + "area:%d"
	invalidateBatch = 100
)

// RedisRateCache keeps rate lookups in redis. Every failure is treated as
// a miss so rate computation keeps working when redis is down.
type RedisRateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRateCache(rdb *redis.Client, ttl time.Duration) *RedisRateCache {
	return &RedisRateCache{rdb: rdb, ttl: ttl}
}

func (c *RedisRateCache) AreaRate(ctx context.Context, areaID uint) (AreaRate, bool) {
	var ar AreaRate
	return ar, c.get(ctx, fmt.Sprintf(areaRateKeyFmt, areaID), &ar)
}

func (c *RedisRateCache) SetAreaRate(ctx context.Context, areaID uint, r AreaRate) {
	c.set(ctx, fmt.Sprintf(areaRateKeyFmt, areaID), r)
}

func (c *RedisRateCache) Surcharges(ctx context.Context) (map[string]float64, bool) {
	var m map[string]float64
	return m, c.get(ctx, surchargesKey, &m)
}

func (c *RedisRateCache) SetSurcharges(ctx context.Context, m map[string]float64) {
	c.set(ctx, surchargesKey, m)
}

// Invalidate drops every cached rate entry.
func (c *RedisRateCache) Invalidate(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, rateKeyPrefix+"*", invalidateBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logrus.WithError(err).Warn("Rate cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logrus.WithError(err).Warn("Rate cache invalidation failed")
	}
}

func (c *RedisRateCache) get(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithField("key", key).Warn("Rate cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Rate cache entry corrupt")
		return false
	}
	return true
}

func (c *RedisRateCache) set(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Rate cache write failed")
	}
}
