package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery_backoffice/internal/models"
)

// mapRateCache is an in-process RateCache that counts invalidations.
type mapRateCache struct {
	areas       map[uint]AreaRate
	surcharges  map[string]float64
	invalidated int
}

func newMapRateCache() *mapRateCache {
	return &mapRateCache{areas: map[uint]AreaRate{}}
}

func (c *mapRateCache) AreaRate(_ context.Context, id uint) (AreaRate, bool) {
	r, ok := c.areas[id]
	return r, ok
}

func (c *mapRateCache) SetAreaRate(_ context.Context, id uint, r AreaRate) { c.areas[id] = r }

func (c *mapRateCache) Surcharges(context.Context) (map[string]float64, bool) {
	return c.surcharges, c.surcharges != nil
}

func (c *mapRateCache) SetSurcharges(_ context.Context, m map[string]float64) { c.surcharges = m }

func (c *mapRateCache) Invalidate(context.Context) {
	c.areas = map[uint]AreaRate{}
	c.surcharges = nil
	c.invalidated++
}

func TestQuoteBaseRateOnly(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	svc := NewRateService(f.db, nil)

	q, err := svc.Quote(context.Background(), f.areaS1.ID, "")
	require.NoError(t, err)
	assert.Equal(t, f.south.ID, q.AreaGroupID)
	assert.Equal(t, "South", q.AreaGroupName)
	assert.Equal(t, 800.0, q.BaseRate)
	assert.Zero(t, q.AdditionalRate)
	assert.Equal(t, 800.0, q.TotalRate)
}

func TestQuoteWithSurcharge(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	svc := NewRateService(f.db, nil)

	q, err := svc.Quote(context.Background(), f.areaN1.ID, models.RateAdvanceDelivery)
	require.NoError(t, err)
	assert.Equal(t, 500.0, q.BaseRate)
	assert.Equal(t, 300.0, q.AdditionalRate)
	assert.Equal(t, 800.0, q.TotalRate)
	assert.Equal(t, models.RateAdvanceDelivery, q.AdditionalRateType)
}

func TestQuoteMissingSettingCountsAsZero(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	svc := NewRateService(f.db, nil)

	q, err := svc.Quote(context.Background(), f.areaN1.ID, models.RateSameClient)
	require.NoError(t, err)
	assert.Zero(t, q.AdditionalRate)
	assert.Equal(t, 500.0, q.TotalRate)
}

func TestQuoteErrors(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	svc := NewRateService(f.db, nil)
	ctx := context.Background()

	_, err := svc.Quote(ctx, f.areaN1.ID, "express")
	assert.ErrorIs(t, err, ErrUnknownRateType)

	_, err = svc.Quote(ctx, 9999, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Quote(ctx, f.loose.ID, "")
	assert.ErrorIs(t, err, ErrNoRateGroup)
}

func TestQuoteUsesCacheAndUpdatesInvalidate(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	cache := newMapRateCache()
	svc := NewRateService(f.db, cache)
	ctx := context.Background()

	_, err := svc.Quote(ctx, f.areaN1.ID, models.RateDropSameZone)
	require.NoError(t, err)
	require.Contains(t, cache.areas, f.areaN1.ID)
	require.NotNil(t, cache.surcharges)

	// A stale cache entry wins until something invalidates it.
	cache.areas[f.areaN1.ID] = AreaRate{AreaGroupID: f.north.ID, AreaGroupName: "North", BaseRate: 1}
	q, err := svc.Quote(ctx, f.areaN1.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.BaseRate)

	_, err = svc.UpdateBaseRate(ctx, f.north.ID, 650)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	q, err = svc.Quote(ctx, f.areaN1.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 650.0, q.BaseRate)

	label := "Drop in same zone"
	setting, err := svc.UpdateSetting(ctx, models.RateDropSameZone, 150, &label)
	require.NoError(t, err)
	assert.Equal(t, 150.0, setting.Amount)
	assert.Equal(t, label, setting.Label)
	assert.Equal(t, 2, cache.invalidated)

	q, err = svc.Quote(ctx, f.areaN1.ID, models.RateDropSameZone)
	require.NoError(t, err)
	assert.Equal(t, 800.0, q.TotalRate)
}

func TestUpdateSettingCreatesMissingKey(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	svc := NewRateService(f.db, nil)
	ctx := context.Background()

	_, err := svc.UpdateSetting(ctx, models.RateSameClient, 50, nil)
	require.NoError(t, err)

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Len(t, settings, 4)

	_, err = svc.UpdateSetting(ctx, "bogus", 50, nil)
	assert.ErrorIs(t, err, ErrUnknownRateType)
	_, err = svc.UpdateSetting(ctx, models.RateSameClient, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateBaseRate(ctx, 9999, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRateCacheFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	cache := NewRedisRateCache(rdb, time.Minute)
	ctx := context.Background()

	cache.SetAreaRate(ctx, 1, AreaRate{BaseRate: 10})
	_, ok := cache.AreaRate(ctx, 1)
	assert.False(t, ok)
	_, ok = cache.Surcharges(ctx)
	assert.False(t, ok)
	assert.NotPanics(t, func() { cache.Invalidate(ctx) })

	f := seedFixture(t, newTestDB(t))
	q, err := NewRateService(f.db, cache).Quote(ctx, f.areaS1.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 800.0, q.TotalRate)
}
