package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

// ErrInconsistent reports totals that do not match the votes the run recorded.
var ErrInconsistent = errors.New("inconsistent totals")

// outcome of one voter iteration.
type outcome int

const (
	outcomeRecorded outcome = iota
	outcomeDuplicate
	outcomeEmpty
	outcomeFailed
)

// Run casts cfg.Votes votes through the HTTP API and verifies the totals.
// It expects no other writers on the server while it runs.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("category", cfg.Category),
		logger.Int("votes", cfg.Votes),
		logger.Int("workers", cfg.Workers),
	)

	if err := client.getJSON(ctx, "/healthz", nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	var before totals
	if err := client.getJSON(ctx, "/stats", &before); err != nil {
		return nil, fmt.Errorf("stats before run: %w", err)
	}

	castVotes(ctx, client, cfg, stats, log)

	var after totals
	if err := client.getJSON(ctx, "/stats", &after); err != nil {
		return stats, fmt.Errorf("stats after run: %w", err)
	}
	stats.VotesDelta = after.Votes - before.Votes
	stats.MatchesDelta = after.Matches - before.Matches
	stats.Duration = time.Since(stats.StartTime)

	displayFinalStats(ctx, log, stats)

	if err := verifyTotals(stats); err != nil {
		return stats, err
	}
	if err := verifyLeaderboard(ctx, client, cfg); err != nil {
		return stats, err
	}
	log.Info(ctx, "simulation verified")
	return stats, nil
}

// castVotes runs the voter pool until cfg.Votes iterations are done.
func castVotes(ctx context.Context, client *HTTPClient, cfg *Config, stats *Stats, log logger.Logger) {
	var recorded, duplicate, empty, failed int64
	jobs := make(chan struct{}, cfg.Workers*2)
	var wg sync.WaitGroup

	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				switch voteOnce(ctx, client, cfg.Category) {
				case outcomeRecorded:
					atomic.AddInt64(&recorded, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeEmpty:
					atomic.AddInt64(&empty, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	attempted := 0
feed:
	for range cfg.Votes {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- struct{}{}:
			attempted++
		}
	}
	close(jobs)
	wg.Wait()

	stats.Attempted = attempted
	stats.Recorded = int(recorded)
	stats.Duplicate = int(duplicate)
	stats.Empty = int(empty)
	stats.Failed = int(failed)
	if cfg.Verbose {
		log.Debug(ctx, "voters finished", logger.Int("attempted", attempted))
	}
}

// voteOnce fetches a pair and votes for its left profile.
func voteOnce(ctx context.Context, client *HTTPClient, category string) outcome {
	var pr types.PairResponse
	if err := client.getJSON(ctx, "/pair?category="+url.QueryEscape(category), &pr); err != nil {
		return outcomeFailed
	}
	if pr.Empty || pr.Pair == nil {
		return outcomeEmpty
	}

	var vr types.VoteResponse
	status, err := client.postJSON(ctx, "/votes", map[string]string{
		"winner_id":     pr.Pair.Left.ID,
		"loser_id":      pr.Pair.Right.ID,
		"submission_id": uuid.NewString(),
	}, &vr)
	if err != nil || status != http.StatusOK {
		return outcomeFailed
	}
	if vr.Duplicate {
		return outcomeDuplicate
	}
	return outcomeRecorded
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var votesPerSecond float64
	if stats.Duration > 0 {
		votesPerSecond = float64(stats.Recorded) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("attempted", stats.Attempted),
		logger.Int("recorded", stats.Recorded),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("empty", stats.Empty),
		logger.Int("failed", stats.Failed),
		logger.Int64("votesDelta", stats.VotesDelta),
		logger.Int64("matchesDelta", stats.MatchesDelta),
		logger.Duration("duration", stats.Duration),
		logger.Float64("votesPerSecond", votesPerSecond),
	)
}
