// Package cache stores built timelines in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/timeline"
)

const keyPrefix = "repair-tracker:timeline"

// Key identifies one cached timeline: an epic load generation viewed on a given day.
type Key struct {
	Epic       string
	Generation string
	Day        string
	Trimmed    bool
}

func (k Key) String() string {
	view := "full"
	if k.Trimmed {
		view = "trimmed"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", keyPrefix, k.Epic, k.Generation, k.Day, view)
}

func epicPattern(epic string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, epic)
}

// TimelineCache is a Redis backed timeline cache. A nil client turns every
// operation into a miss or a no-op.
type TimelineCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTimelineCache constructs the cache.
func NewTimelineCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TimelineCache {
	return &TimelineCache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a Redis client is attached.
func (c *TimelineCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached timeline for key. A cached "no data" result is
// returned as (nil, true).
func (c *TimelineCache) Get(ctx context.Context, key Key) (*timeline.Timeline, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("timeline cache read failed", zap.String("key", key.String()), zap.Error(err))
		return nil, false
	}
	var tl *timeline.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		c.logger.Warn("timeline cache entry corrupt", zap.String("key", key.String()), zap.Error(err))
		_ = c.client.Del(ctx, key.String()).Err()
		return nil, false
	}
	return tl, true
}

// Set stores tl under key with the configured TTL.
func (c *TimelineCache) Set(ctx context.Context, key Key, tl *timeline.Timeline) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(tl)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key.String(), data, c.ttl).Err()
}

// Invalidate drops every cached timeline of epic.
func (c *TimelineCache) Invalidate(ctx context.Context, epic string) error {
	if !c.Enabled() {
		return nil
	}
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, epicPattern(epic), 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			removed += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.logger.Debug("timeline cache invalidated", zap.String("epic", epic), zap.Int("keys", removed))
	return nil
}
