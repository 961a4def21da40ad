package simulate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okian/arena/internal/domain/types"
)

// verifyTotals checks that every recorded vote was stored exactly once.
func verifyTotals(stats *Stats) error {
	if stats.VotesDelta != int64(stats.Recorded) {
		return fmt.Errorf("%w: %d votes recorded but vote log grew by %d",
			ErrInconsistent, stats.Recorded, stats.VotesDelta)
	}
	if stats.MatchesDelta != 2*int64(stats.Recorded) {
		return fmt.Errorf("%w: %d votes recorded but match counters grew by %d",
			ErrInconsistent, stats.Recorded, stats.MatchesDelta)
	}
	return nil
}

// verifyLeaderboard checks ordering and positions of the category leaderboard.
func verifyLeaderboard(ctx context.Context, client *HTTPClient, cfg *Config) error {
	q := url.Values{"category": {cfg.Category}}
	if cfg.TopN > 0 {
		q.Set("limit", strconv.Itoa(cfg.TopN))
	}
	var lb types.Leaderboard
	if err := client.getJSON(ctx, "/leaderboard?"+q.Encode(), &lb); err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	return checkOrder(lb.Entries)
}

// checkOrder verifies rating DESC, id ASC and 1-based consecutive positions.
func checkOrder(entries []types.Entry) error {
	for i, e := range entries {
		if e.Position != i+1 {
			return fmt.Errorf("%w: entry %d has position %d", ErrInconsistent, i, e.Position)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1].Profile
		cur := e.Profile
		if cur.Rating > prev.Rating || (cur.Rating == prev.Rating && cur.ID < prev.ID) {
			return fmt.Errorf("%w: leaderboard not sorted at position %d", ErrInconsistent, e.Position)
		}
	}
	return nil
}
