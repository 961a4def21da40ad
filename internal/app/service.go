// Package service provides the rating engine: match selection, outcome
// recording and leaderboard reads, implementing the dependencies of the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/adapters/cache"
	repository "github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/dedupe"
	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/rating"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Service implements the API dependencies for the rating engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	cache   *cache.LeaderboardCache
	deduper dedupe.Deduper
	calc    *rating.Calculator

	// Configuration
	categories     []model.Category
	kFactor        float64
	baselineRating int
	defaultLimit   int
	maxLimit       int
	maxAttempts    int
	backoffBase    time.Duration
	backoffMax     time.Duration
	voteTimeout    time.Duration
	dedupeSize     int
	demo           bool
	statsInterval  time.Duration

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	newID  func() string
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the rating store. Start falls back to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLeaderboardCache puts a cache in front of leaderboard reads.
func WithLeaderboardCache(c *cache.LeaderboardCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithCategories sets the categories profiles may be compared within.
func WithCategories(categories ...string) Option {
	return func(s *Service) {
		if len(categories) == 0 {
			return
		}
		s.categories = s.categories[:0]
		for _, c := range categories {
			s.categories = append(s.categories, model.Category(c))
		}
	}
}

// WithKFactor sets the Elo K shared by all profiles.
func WithKFactor(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.kFactor = k
		}
	}
}

// WithBaselineRating sets the rating demo profiles start from.
func WithBaselineRating(r int) Option {
	return func(s *Service) {
		if r > 0 {
			s.baselineRating = r
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard sizes.
func WithLeaderboardLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 && maxLimit >= defaultLimit {
			s.defaultLimit = defaultLimit
			s.maxLimit = maxLimit
		}
	}
}

// WithVoteRetry bounds optimistic retries and shapes their backoff.
func WithVoteRetry(maxAttempts int, base, maxBackoff time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if base >= 0 && maxBackoff >= base {
			s.backoffBase = base
			s.backoffMax = maxBackoff
		}
	}
}

// WithVoteTimeout bounds one accepted vote.
func WithVoteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.voteTimeout = d
		}
	}
}

// WithDedupeSize sets the size of the submission guard.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDemoMode seeds demo profiles on Start.
func WithDemoMode(enabled bool) Option {
	return func(s *Service) {
		s.demo = enabled
	}
}

// WithStatsInterval sets how often store totals are exported as metrics.
func WithStatsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statsInterval = d
		}
	}
}

// WithIDGenerator overrides vote id generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		categories:     []model.Category{"femenino", "masculino"},
		kFactor:        rating.DefaultKFactor,
		baselineRating: 1500,
		defaultLimit:   10,
		maxLimit:       100,
		maxAttempts:    5,
		backoffBase:    10 * time.Millisecond,
		backoffMax:     200 * time.Millisecond,
		voteTimeout:    5 * time.Second,
		dedupeSize:     100_000,
		statsInterval:  10 * time.Second,
		stopCh:         make(chan struct{}),
		newID:          uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.calc = rating.NewCalculator(rating.WithKFactor(s.kFactor))
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Named("engine")
	}
	s.logger.Info(ctx, "starting rating engine...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	if s.demo {
		n, err := s.seedDemo(ctx)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "demo mode: seeded demo profiles", logger.Int("profiles", n))
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.exportStats()

	s.started = true
	s.logger.Info(ctx, "rating engine started",
		logger.Float64("kFactor", s.kFactor),
		logger.Any("categories", s.categories),
		logger.Int("maxAttempts", s.maxAttempts),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("demo", s.demo),
		logger.Bool("cache", s.cache.Enabled()),
	)
	return nil
}

// Stop gracefully shuts down the service and releases the store and cache.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating engine...")

	close(s.stopCh)
	s.wg.Wait()

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Warn(ctx, "closing cache", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "rating engine stopped")
}

// exportStats periodically publishes store totals as gauges.
func (s *Service) exportStats() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.statsInterval)
			st, err := s.store.Stats(ctx)
			cancel()
			if err != nil {
				s.logger.Warn(context.Background(), "stats export failed", logger.Error(err))
				continue
			}
			metrics.UpdateStoreTotals(st.Profiles, st.Votes)
		}
	}
}

// SeenAndRecord atomically checks if a submission id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordDuplicateSubmission()
	}
	return seen
}

// Unrecord forgets a submission id so the caller may retry it.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the submission guard.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// DemoMode reports whether demo content is being served.
func (s *Service) DemoMode() bool { return s.demo }

// Categories lists the configured categories.
func (s *Service) Categories() []string {
	out := make([]string, len(s.categories))
	for i, c := range s.categories {
		out[i] = string(c)
	}
	return out
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"demo":       s.demo,
		"categories": s.Categories(),
		"kFactor":    s.kFactor,
		"dedupeSize": s.Size(),
		"cache":      s.cache.Enabled(),
	}

	if s.started {
		st, err := s.store.Stats(ctx)
		if err != nil {
			stats["storeError"] = err.Error()
			return stats
		}
		stats["profiles"] = st.Profiles
		stats["activeProfiles"] = st.ActiveProfiles
		stats["votes"] = st.Votes
		stats["matches"] = st.Matches
		metrics.UpdateStoreTotals(st.Profiles, st.Votes)
	}
	return stats
}

func (s *Service) knownCategory(c string) (model.Category, bool) {
	for _, k := range s.categories {
		if string(k) == c {
			return k, true
		}
	}
	return "", false
}

// normalizeID parses a profile id and returns its canonical form.
func normalizeID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
