// Package rating implements the Elo update applied to one pairwise outcome.
package rating

import "math"

// Default rating configuration constants.
const (
	DefaultKFactor = 32
	// eloScale is the rating gap at which the favourite is expected to win ten times as often.
	eloScale = 400
)

// Calculator applies the Elo update with a fixed K shared by all profiles.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	k float64
}

// NewCalculator creates a Calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{k: DefaultKFactor}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KFactor returns the configured K.
func (c *Calculator) KFactor() float64 { return c.k }

// ExpectedScore is the probability that a player rated ra beats one rated rb.
func ExpectedScore(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/eloScale))
}

// Update returns the new winner and loser ratings.
// Results are rounded half away from zero (math.Round).
func (c *Calculator) Update(winner, loser int) (newWinner, newLoser int) {
	ew := ExpectedScore(winner, loser)
	el := ExpectedScore(loser, winner)
	newWinner = int(math.Round(float64(winner) + c.k*(1-ew)))
	newLoser = int(math.Round(float64(loser) + c.k*(0-el)))
	return newWinner, newLoser
}
