package service

import (
	"context"
	"errors"
	"fmt"

	repository "github.com/okian/arena/internal/adapters/repository"
	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// EffectiveLimit resolves a requested leaderboard size: zero means the
// default, anything above the maximum is clamped.
func (s *Service) EffectiveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	case limit == 0:
		return s.defaultLimit, nil
	case limit > s.maxLimit:
		return s.maxLimit, nil
	}
	return limit, nil
}

// TopProfiles returns up to limit active profiles of category ordered by
// rating descending, ties broken by id ascending.
func (s *Service) TopProfiles(ctx context.Context, category string, limit int) ([]model.Profile, error) {
	cat, known := s.knownCategory(category)
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	limit, err := s.EffectiveLimit(limit)
	if err != nil {
		return nil, err
	}
	metrics.RecordLeaderboardQuery(category)

	profiles, gen, hit, cerr := s.cache.Get(ctx, cat, limit)
	switch {
	case cerr != nil:
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "leaderboard cache read failed", logger.String("category", category), logger.Error(cerr))
	case hit:
		metrics.RecordCacheHit()
		return profiles, nil
	case s.cache.Enabled():
		metrics.RecordCacheMiss()
	}

	profiles, err = s.store.TopProfiles(ctx, cat, limit)
	if err != nil {
		s.logger.Error(ctx, "leaderboard query failed", logger.String("category", category), logger.Error(err))
		return nil, storeError(err)
	}

	// A failed cache read gives no generation to fill under.
	if cerr == nil {
		if err := s.cache.Set(ctx, cat, gen, limit, profiles); err != nil {
			metrics.RecordCacheError()
			s.logger.Warn(ctx, "leaderboard cache write failed", logger.String("category", category), logger.Error(err))
		}
	}
	return profiles, nil
}

// ProfileRank returns the 1-based leaderboard position of an active profile.
func (s *Service) ProfileRank(ctx context.Context, id string) (model.Ranked, error) {
	norm, ok := normalizeID(id)
	if !ok {
		return model.Ranked{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	r, err := s.store.Rank(ctx, norm)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, repository.ErrNotFound):
		return model.Ranked{}, fmt.Errorf("%w: %s", ErrProfileNotFound, norm)
	case errors.Is(err, repository.ErrInvalidArgument):
		return model.Ranked{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	s.logger.Error(ctx, "rank query failed", logger.String("id", norm), logger.Error(err))
	return model.Ranked{}, storeError(err)
}

// UpsertProfile creates or updates a profile on behalf of the profile owner.
// Rating and match history belong to the vote recorder: the baseline rating
// applies to new profiles and an existing profile keeps what its votes produced.
func (s *Service) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	norm, ok := normalizeID(p.ID)
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: %q", ErrMalformedID, p.ID)
	}
	p.ID = norm
	if _, known := s.knownCategory(string(p.Category)); !known {
		return model.Profile{}, fmt.Errorf("%w: %q", ErrUnknownCategory, p.Category)
	}
	if p.Rating == 0 {
		p.Rating = s.baselineRating
	}
	categories := []model.Category{p.Category}
	if prev, err := s.store.Profile(ctx, norm); err == nil && prev.Category != p.Category {
		categories = append(categories, prev.Category)
	}
	out, err := s.store.PutProfile(ctx, p)
	if err != nil {
		return model.Profile{}, storeError(err)
	}
	for _, c := range categories {
		if err := s.cache.Invalidate(ctx, c); err != nil {
			metrics.RecordCacheError()
			s.logger.Warn(ctx, "leaderboard cache invalidation failed", logger.String("category", string(c)), logger.Error(err))
		}
	}
	return out, nil
}
