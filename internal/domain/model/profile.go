// Package model contains domain models passed between layers.
package model

import "time"

// Category partitions profiles; comparisons never cross categories.
type Category string

// Profile is a rated participant. Rating changes only through recorded outcomes.
type Profile struct {
	ID       string
	Category Category
	Rating   int
	Active   bool

	// Display fields owned by the external profile collaborator.
	Username  string
	FullName  string
	AvatarURL string
	Career    string

	Wins    int
	Losses  int
	Matches int

	// Version is the optimistic concurrency token; bumped on every rating write.
	Version int64
}

// Vote is one immutable "winner beat loser" outcome in the append-only log.
type Vote struct {
	ID       string
	WinnerID string
	LoserID  string
	Category Category

	WinnerBefore int
	WinnerAfter  int
	LoserBefore  int
	LoserAfter   int

	CreatedAt time.Time
}

// MatchPair is a transient pair of distinct eligible profiles of one category.
type MatchPair struct {
	Left  Profile
	Right Profile
}

// Ranked is a profile with its 1-based position in the leaderboard order.
type Ranked struct {
	Position int
	Profile  Profile
}

// Less reports whether a sorts before b in leaderboard order:
// rating descending, then id ascending.
func Less(a, b Profile) bool {
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	return a.ID < b.ID
}
