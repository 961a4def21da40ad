// Package types contains the JSON shapes served by the API.
package types

import model "github.com/okian/arena/internal/domain/model"

// ProfileView is the public projection of a profile.
type ProfileView struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Rating    int    `json:"rating"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Career    string `json:"career,omitempty"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
	Matches   int    `json:"matches"`
}

// NewProfileView projects a domain profile; the version token is not exposed.
func NewProfileView(p model.Profile) ProfileView {
	return ProfileView{
		ID:        p.ID,
		Category:  string(p.Category),
		Rating:    p.Rating,
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
		Career:    p.Career,
		Wins:      p.Wins,
		Losses:    p.Losses,
		Matches:   p.Matches,
	}
}

// Entry represents a leaderboard entry.
type Entry struct {
	Position int         `json:"position"`
	Profile  ProfileView `json:"profile"`
}

// Leaderboard is the response of GET /leaderboard.
type Leaderboard struct {
	Category string  `json:"category"`
	Limit    int     `json:"limit"`
	Entries  []Entry `json:"entries"`
}

// NewLeaderboard numbers profiles from 1 in the order given.
func NewLeaderboard(category string, limit int, profiles []model.Profile) Leaderboard {
	entries := make([]Entry, len(profiles))
	for i, p := range profiles {
		entries[i] = Entry{Position: i + 1, Profile: NewProfileView(p)}
	}
	return Leaderboard{Category: category, Limit: limit, Entries: entries}
}

// Pair holds the two profiles to compare.
type Pair struct {
	Left  ProfileView `json:"left"`
	Right ProfileView `json:"right"`
}

// PairResponse is the response of GET /pair. Pair is nil when Empty.
type PairResponse struct {
	Empty bool  `json:"empty"`
	Pair  *Pair `json:"pair,omitempty"`
}

// RatingChange reports one participant's rating after a vote.
type RatingChange struct {
	ID     string `json:"id"`
	Rating int    `json:"rating"`
}

// VoteResponse is the response of POST /votes.
type VoteResponse struct {
	Status    string        `json:"status"`
	Duplicate bool          `json:"duplicate,omitempty"`
	VoteID    string        `json:"vote_id,omitempty"`
	Winner    *RatingChange `json:"winner,omitempty"`
	Loser     *RatingChange `json:"loser,omitempty"`
}

// Vote statuses.
const (
	VoteStatusRecorded  = "recorded"
	VoteStatusDuplicate = "duplicate"
)

// RankResponse is the response of GET /profiles/{id}/rank.
type RankResponse struct {
	Position int         `json:"position"`
	Profile  ProfileView `json:"profile"`
}
