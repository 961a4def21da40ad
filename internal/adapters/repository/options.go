package repository

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for vote timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeed makes sampling and treap priorities reproducible.
func WithSeed(seed uint64) Option {
	return func(s *MemoryStore) {
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // sampling, not crypto
		var mu sync.Mutex
		s.intN = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
		s.prio = func() uint64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Uint64()
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	maxConns      int32
	connAttempts  int
	retryInterval time.Duration
	migrate       bool
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) PostgresOption {
	return func(c *postgresConfig) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// WithConnectRetry sets how many times to try the initial connection and how long to wait between tries.
func WithConnectRetry(attempts int, interval time.Duration) PostgresOption {
	return func(c *postgresConfig) {
		if attempts > 0 {
			c.connAttempts = attempts
		}
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

// WithMigrate controls whether the embedded schema is applied on connect.
func WithMigrate(enabled bool) PostgresOption {
	return func(c *postgresConfig) {
		c.migrate = enabled
	}
}
