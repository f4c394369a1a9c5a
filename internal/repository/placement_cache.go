package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"placement_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const placementSnapshotKeyPrefix = "placement:snapshot:"

// PlacementCache keeps published test snapshots in Redis. A nil cache or a
// nil client disables caching; cache errors never fail a request.
type PlacementCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewPlacementCache(rdb *redis.Client, ttl time.Duration) *PlacementCache {
	return &PlacementCache{Redis: rdb, TTL: ttl}
}

func snapshotKey(testID uint) string {
	return fmt.Sprintf("%s%d", placementSnapshotKeyPrefix, testID)
}

func (c *PlacementCache) enabled() bool {
	return c != nil && c.Redis != nil
}

func (c *PlacementCache) Get(ctx context.Context, testID uint) (*PlacementSnapshot, bool) {
	if !c.enabled() {
		return nil, false
	}
	val, err := c.Redis.Get(ctx, snapshotKey(testID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Log.Warn("placement cache read failed", zap.Uint("testId", testID), zap.Error(err))
		return nil, false
	}

	var snap PlacementSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		logger.Log.Warn("placement cache entry corrupt", zap.Uint("testId", testID), zap.Error(err))
		c.Invalidate(ctx, testID)
		return nil, false
	}
	return &snap, true
}

func (c *PlacementCache) Set(ctx context.Context, snap *PlacementSnapshot) {
	if !c.enabled() || snap == nil {
		return
	}
	val, err := json.Marshal(snap)
	if err != nil {
		logger.Log.Warn("placement cache encode failed", zap.Uint("testId", snap.Test.ID), zap.Error(err))
		return
	}
	if err := c.Redis.Set(ctx, snapshotKey(snap.Test.ID), val, c.TTL).Err(); err != nil {
		logger.Log.Warn("placement cache write failed", zap.Uint("testId", snap.Test.ID), zap.Error(err))
	}
}

func (c *PlacementCache) Invalidate(ctx context.Context, testID uint) {
	if !c.enabled() {
		return
	}
	if err := c.Redis.Del(ctx, snapshotKey(testID)).Err(); err != nil {
		logger.Log.Warn("placement cache invalidate failed", zap.Uint("testId", testID), zap.Error(err))
	}
}
