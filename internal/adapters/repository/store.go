// Package repository defines the rating store interface and its implementations.
package repository

import (
	"context"
	"errors"
	"time"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

// Outcome is one conditional write: both profiles as read (with their versions)
// and the ratings to store. ApplyOutcome fails with ErrConflict when either
// profile changed since it was read.
type Outcome struct {
	VoteID          string
	Winner          model.Profile
	Loser           model.Profile
	NewWinnerRating int
	NewLoserRating  int
}

// Stats summarises store contents.
type Stats struct {
	Profiles       int64
	ActiveProfiles int64
	Votes          int64
	// Matches is the sum of per-profile match counters.
	Matches int64
}

// Store is the single source of truth for ratings and the vote log.
type Store interface {
	// Profile returns a profile regardless of its active flag.
	// Returns ErrNotFound if the id is unknown.
	Profile(ctx context.Context, id string) (model.Profile, error)

	// SamplePair draws two distinct active profiles of category uniformly at random.
	// ok is false when fewer than two are eligible.
	SamplePair(ctx context.Context, category model.Category) (left, right model.Profile, ok bool, err error)

	// ApplyOutcome writes both ratings and appends the vote atomically.
	ApplyOutcome(ctx context.Context, o Outcome) (model.Vote, error)

	// TopProfiles returns up to limit active profiles of category in leaderboard order.
	TopProfiles(ctx context.Context, category model.Category, limit int) ([]model.Profile, error)

	// Rank returns the 1-based leaderboard position of an active profile.
	// Returns ErrNotFound for unknown or inactive profiles.
	Rank(ctx context.Context, id string) (model.Ranked, error)

	// PutProfile upserts a profile owned by the external profile collaborator.
	// Every write bumps the version. Rating and match counters are only
	// taken on insert; an existing profile keeps the values its votes produced.
	PutProfile(ctx context.Context, p model.Profile) (model.Profile, error)

	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// observe records latency and error kind for one store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.RecordStoreError(op, "not_found")
	case errors.Is(err, ErrConflict):
		metrics.RecordStoreError(op, "conflict")
	case errors.Is(err, ErrUnavailable):
		metrics.RecordStoreError(op, "unavailable")
	default:
		metrics.RecordStoreError(op, "other")
	}
}

func validateProfile(p model.Profile) error {
	if p.ID == "" {
		return errors.Join(ErrInvalidArgument, errors.New("profile id is empty"))
	}
	if p.Category == "" {
		return errors.Join(ErrInvalidArgument, errors.New("profile category is empty"))
	}
	return nil
}

func validateOutcome(o Outcome) error {
	if o.Winner.ID == "" || o.Loser.ID == "" || o.Winner.ID == o.Loser.ID {
		return errors.Join(ErrInvalidArgument, errors.New("outcome needs two distinct profiles"))
	}
	if o.VoteID == "" {
		return errors.Join(ErrInvalidArgument, errors.New("outcome needs a vote id"))
	}
	return nil
}
