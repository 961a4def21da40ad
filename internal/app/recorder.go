package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	repository "github.com/okian/arena/internal/adapters/repository"
	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Result is a recorded vote together with both profiles after the update.
type Result struct {
	Vote   model.Vote
	Winner model.Profile
	Loser  model.Profile
}

// RecordOutcome applies one pairwise outcome: the winner gains what the loser
// loses (up to rounding), both match counters move and the vote is appended,
// all in one atomic write. Concurrent outcomes touching the same profile never
// lose an update; a stale read is retried with backoff.
//
// Once accepted the vote runs on its own deadline, so a caller that goes away
// does not leave it half applied.
func (s *Service) RecordOutcome(ctx context.Context, winnerID, loserID string) (Result, error) {
	start := time.Now()
	defer func() { metrics.RecordVoteLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	winner, ok := normalizeID(winnerID)
	if !ok {
		return Result{}, s.reject(ctx, "malformed_id", fmt.Errorf("%w: %w: winner %q", ErrInvalidOutcome, ErrMalformedID, winnerID))
	}
	loser, ok := normalizeID(loserID)
	if !ok {
		return Result{}, s.reject(ctx, "malformed_id", fmt.Errorf("%w: %w: loser %q", ErrInvalidOutcome, ErrMalformedID, loserID))
	}
	if winner == loser {
		return Result{}, s.reject(ctx, "same_profile", fmt.Errorf("%w: %w", ErrInvalidOutcome, ErrSameProfile))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.voteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordVoteRetry()
			if err := s.sleep(ctx, attempt-1); err != nil {
				lastErr = err
				break
			}
		}

		res, err := s.tryRecord(ctx, winner, loser)
		if err == nil {
			s.afterRecord(ctx, res)
			return res, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return Result{}, err
		}
		metrics.RecordVoteConflict()
		lastErr = err
		s.logger.Debug(ctx, "vote conflict, retrying",
			logger.String("winner", winner),
			logger.String("loser", loser),
			logger.Int("attempt", attempt),
		)
	}

	metrics.RecordVoteFailed("retries_exhausted")
	s.logger.Warn(ctx, "vote abandoned",
		logger.String("winner", winner),
		logger.String("loser", loser),
		logger.Int("attempts", s.maxAttempts),
		logger.Error(lastErr),
	)
	return Result{}, fmt.Errorf("%w: %w: %w", ErrStoreFailure, ErrRetriesExhausted, lastErr)
}

// tryRecord runs one read-compute-write cycle.
func (s *Service) tryRecord(ctx context.Context, winnerID, loserID string) (Result, error) {
	w, err := s.store.Profile(ctx, winnerID)
	if err != nil {
		return Result{}, s.readError(ctx, "winner", winnerID, err)
	}
	l, err := s.store.Profile(ctx, loserID)
	if err != nil {
		return Result{}, s.readError(ctx, "loser", loserID, err)
	}

	if w.Category != l.Category {
		return Result{}, s.reject(ctx, "category_mismatch",
			fmt.Errorf("%w: %w: %s vs %s", ErrInvalidOutcome, ErrCategoryMismatch, w.Category, l.Category))
	}
	if !w.Active || !l.Active {
		id := w.ID
		if w.Active {
			id = l.ID
		}
		return Result{}, s.reject(ctx, "inactive_profile",
			fmt.Errorf("%w: %w: %s", ErrInvalidOutcome, ErrInactiveProfile, id))
	}

	newW, newL := s.calc.Update(w.Rating, l.Rating)
	vote, err := s.store.ApplyOutcome(ctx, repository.Outcome{
		VoteID:          s.newID(),
		Winner:          w,
		Loser:           l,
		NewWinnerRating: newW,
		NewLoserRating:  newL,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Result{}, err
		}
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, s.reject(ctx, "not_found", fmt.Errorf("%w: %w: %w", ErrInvalidOutcome, ErrProfileNotFound, err))
		}
		metrics.RecordVoteFailed("store")
		s.logger.Error(ctx, "apply outcome failed",
			logger.String("winner", winnerID),
			logger.String("loser", loserID),
			logger.Error(err),
		)
		return Result{}, storeError(err)
	}

	w.Rating, w.Wins, w.Matches, w.Version = newW, w.Wins+1, w.Matches+1, w.Version+1
	l.Rating, l.Losses, l.Matches, l.Version = newL, l.Losses+1, l.Matches+1, l.Version+1
	return Result{Vote: vote, Winner: w, Loser: l}, nil
}

func (s *Service) afterRecord(ctx context.Context, res Result) {
	metrics.RecordVoteRecorded(string(res.Vote.Category), res.Vote.WinnerAfter-res.Vote.WinnerBefore)
	if err := s.cache.Invalidate(ctx, res.Vote.Category); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "leaderboard cache invalidation failed",
			logger.String("category", string(res.Vote.Category)),
			logger.Error(err),
		)
	}
	s.logger.Debug(ctx, "vote recorded",
		logger.String("vote", res.Vote.ID),
		logger.String("category", string(res.Vote.Category)),
		logger.String("winner", res.Vote.WinnerID),
		logger.Int("winnerAfter", res.Vote.WinnerAfter),
		logger.String("loser", res.Vote.LoserID),
		logger.Int("loserAfter", res.Vote.LoserAfter),
	)
}

func (s *Service) readError(ctx context.Context, role, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.reject(ctx, "not_found", fmt.Errorf("%w: %w: %s %s", ErrInvalidOutcome, ErrProfileNotFound, role, id))
	case errors.Is(err, repository.ErrInvalidArgument):
		return s.reject(ctx, "malformed_id", fmt.Errorf("%w: %w: %s %s", ErrInvalidOutcome, ErrMalformedID, role, id))
	}
	metrics.RecordVoteFailed("store")
	s.logger.Error(ctx, "profile read failed",
		logger.String("role", role),
		logger.String("id", id),
		logger.Error(err),
	)
	return storeError(err)
}

func (s *Service) reject(ctx context.Context, reason string, err error) error {
	metrics.RecordVoteRejected(reason)
	s.logger.Debug(ctx, "vote rejected", logger.String("reason", reason), logger.Error(err))
	return err
}

// sleep waits an exponentially growing, jittered delay before retry n.
func (s *Service) sleep(ctx context.Context, n int) error {
	d := s.backoffBase << min(n-1, 16)
	if d <= 0 || d > s.backoffMax {
		d = s.backoffMax
	}
	if d <= 0 {
		return ctx.Err()
	}
	d = d/2 + rand.N(d/2+1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// storeError marks err as a transient store failure.
func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
