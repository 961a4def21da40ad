// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() builds a Config with defaults; Load layers file and env on top.
//   - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the rating store backend: memory or postgres.
	Store string `koanf:"store"`
	// DatabaseURL is the Postgres connection string used when Store is postgres.
	DatabaseURL string `koanf:"database_url"`
	// DatabaseMaxConns caps the pgx pool size.
	DatabaseMaxConns int32 `koanf:"database_max_conns"`

	// RedisURL enables the leaderboard cache when set.
	RedisURL string `koanf:"redis_url"`
	// LeaderboardCacheTTLMS bounds how long a cached leaderboard lives.
	LeaderboardCacheTTLMS int `koanf:"leaderboard_cache_ttl_ms"`

	// Categories lists the partitions profiles may belong to.
	Categories []string `koanf:"categories"`

	// KFactor is the Elo K shared by every profile and category.
	KFactor float64 `koanf:"k_factor"`
	// BaselineRating is the rating newly seeded profiles start with.
	BaselineRating int `koanf:"baseline_rating"`

	// DefaultLeaderboardLimit applies when the caller gives no limit.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// VoteMaxAttempts bounds the optimistic read-compute-write cycles per vote.
	VoteMaxAttempts int `koanf:"vote_max_attempts"`
	// VoteBackoffBaseMS and VoteBackoffMaxMS shape the exponential backoff between attempts.
	VoteBackoffBaseMS int `koanf:"vote_backoff_base_ms"`
	VoteBackoffMaxMS  int `koanf:"vote_backoff_max_ms"`
	// VoteTimeoutMS bounds one vote once accepted; caller cancellation does not apply.
	VoteTimeoutMS int `koanf:"vote_timeout_ms"`

	// DedupeSize sets the capacity of the submission guard.
	DedupeSize int `koanf:"dedupe_size"`

	// DemoMode seeds an in-memory store with demo profiles and marks every response.
	DemoMode bool `koanf:"demo_mode"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		Store:                   StoreMemory,
		DatabaseMaxConns:        10,
		LeaderboardCacheTTLMS:   30_000,
		Categories:              []string{"femenino", "masculino"},
		KFactor:                 32,
		BaselineRating:          1500,
		DefaultLeaderboardLimit: 10,
		MaxLeaderboardLimit:     100,
		VoteMaxAttempts:         5,
		VoteBackoffBaseMS:       10,
		VoteBackoffMaxMS:        200,
		VoteTimeoutMS:           5_000,
		DedupeSize:              100_000,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DemoMode {
			return fmt.Errorf("%w: demo_mode runs on the memory store only", ErrInvalidConfig)
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidConfig)
		}
		if _, dup := seen[cat]; dup {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidConfig, cat)
		}
		seen[cat] = struct{}{}
	}
	if c.KFactor <= 0 {
		return fmt.Errorf("%w: k_factor must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit <= 0 || c.DefaultLeaderboardLimit <= 0 ||
		c.DefaultLeaderboardLimit > c.MaxLeaderboardLimit {
		return fmt.Errorf("%w: leaderboard limits must satisfy 0 < default <= max", ErrInvalidConfig)
	}
	if c.VoteMaxAttempts < 1 {
		return fmt.Errorf("%w: vote_max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.VoteBackoffBaseMS < 0 || c.VoteBackoffMaxMS < c.VoteBackoffBaseMS {
		return fmt.Errorf("%w: vote backoff must satisfy 0 <= base <= max", ErrInvalidConfig)
	}
	if c.VoteTimeoutMS <= 0 {
		return fmt.Errorf("%w: vote_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.DedupeSize < 0 {
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HasCategory reports whether name is a configured category.
func (c *Config) HasCategory(name string) bool {
	return slices.Contains(c.Categories, name)
}

// VoteBackoffBase returns the first retry delay.
func (c *Config) VoteBackoffBase() time.Duration {
	return time.Duration(c.VoteBackoffBaseMS) * time.Millisecond
}

// VoteBackoffMax returns the retry delay ceiling.
func (c *Config) VoteBackoffMax() time.Duration {
	return time.Duration(c.VoteBackoffMaxMS) * time.Millisecond
}

// VoteTimeout returns the per-vote deadline.
func (c *Config) VoteTimeout() time.Duration {
	return time.Duration(c.VoteTimeoutMS) * time.Millisecond
}

// LeaderboardCacheTTL returns the cache entry lifetime.
func (c *Config) LeaderboardCacheTTL() time.Duration {
	return time.Duration(c.LeaderboardCacheTTLMS) * time.Millisecond
}
