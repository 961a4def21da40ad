package service

import (
	"context"
	"fmt"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// SelectPair draws two distinct active profiles of category uniformly at random.
// ok is false when the category has fewer than two active profiles.
func (s *Service) SelectPair(ctx context.Context, category string) (pair model.MatchPair, ok bool, err error) {
	cat, known := s.knownCategory(category)
	if !known {
		return model.MatchPair{}, false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	left, right, ok, err := s.store.SamplePair(ctx, cat)
	if err != nil {
		s.logger.Error(ctx, "sample pair failed",
			logger.String("category", category),
			logger.Error(err),
		)
		return model.MatchPair{}, false, storeError(err)
	}
	if !ok {
		metrics.RecordPairEmpty(category)
		return model.MatchPair{}, false, nil
	}

	metrics.RecordPairServed(category)
	return model.MatchPair{Left: left, Right: right}, true, nil
}
