// Package cache provides a Redis cache-aside layer for leaderboard reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

const (
	keyPrefix      = "arena:lb:"
	connectTimeout = 3 * time.Second
	// DefaultTTL bounds how long an entry may outlive a failed invalidation.
	DefaultTTL = 30 * time.Second
)

// LeaderboardCache stores leaderboard pages under a per-category generation.
// Invalidate bumps the generation after a committed vote, so any fill computed
// from an older read lands under a key nobody reads again.
// A nil client disables caching; every call is then a miss or a no-op.
type LeaderboardCache struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

// New connects to redisURL. An empty URL or a failed ping yields a disabled cache.
func New(ctx context.Context, redisURL string, ttl time.Duration) *LeaderboardCache {
	log := logger.Named("cache")
	if redisURL == "" {
		log.Info(ctx, "redis: no URL configured, leaderboard cache disabled")
		return &LeaderboardCache{log: log}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn(ctx, "redis: invalid URL, leaderboard cache disabled", logger.Error(err))
		return &LeaderboardCache{log: log}
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		log.Warn(ctx, "redis: connection failed, leaderboard cache disabled", logger.Error(err))
		return &LeaderboardCache{log: log}
	}

	log.Info(ctx, "redis: connected, leaderboard cache enabled", logger.Duration("ttl", ttl))
	return NewWithClient(rdb, ttl)
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LeaderboardCache{rdb: rdb, ttl: ttl, log: logger.Named("cache")}
}

// Enabled reports whether a Redis client is attached.
func (c *LeaderboardCache) Enabled() bool { return c != nil && c.rdb != nil }

func genKey(category model.Category) string {
	return keyPrefix + string(category) + ":gen"
}

func pageKey(category model.Category, gen int64, limit int) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, category, gen, limit)
}

// Get returns the cached page and the generation it was looked up under.
// Pass gen to Set when filling after a miss.
func (c *LeaderboardCache) Get(ctx context.Context, category model.Category, limit int) (profiles []model.Profile, gen int64, hit bool, err error) {
	if !c.Enabled() {
		return nil, 0, false, nil
	}
	gen, err = c.rdb.Get(ctx, genKey(category)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}
	data, err := c.rdb.Get(ctx, pageKey(category, gen, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, err
	}
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, gen, false, err
	}
	return profiles, gen, true, nil
}

// Set stores a page computed after a miss at generation gen.
func (c *LeaderboardCache) Set(ctx context.Context, category model.Category, gen int64, limit int, profiles []model.Profile) error {
	if !c.Enabled() {
		return nil
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	b, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, pageKey(category, gen, limit), b, c.ttl).Err()
}

// Invalidate retires every cached page of category.
func (c *LeaderboardCache) Invalidate(ctx context.Context, category model.Category) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Incr(ctx, genKey(category)).Err()
}

// Ping checks the connection; a disabled cache is always healthy.
func (c *LeaderboardCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (c *LeaderboardCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
