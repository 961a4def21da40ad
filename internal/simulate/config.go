// Package simulate drives the rating API with concurrent voters and checks
// that every recorded vote is reflected exactly once.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Category string        // Category to vote in
	Votes    int           // Number of votes to cast
	Workers  int           // Number of concurrent voters
	Timeout  time.Duration // HTTP request timeout
	TopN     int           // Leaderboard size to verify
	Verbose  bool          // Log every vote
}

// Stats holds run statistics.
type Stats struct {
	Attempted  int
	Recorded   int
	Duplicate  int
	Empty      int
	Failed     int
	VotesDelta int64
	// MatchesDelta is the growth of the per-profile match counters, two per vote.
	MatchesDelta int64
	StartTime    time.Time
	Duration     time.Duration
}

// totals mirrors the fields of GET /stats the run checks.
type totals struct {
	Votes   int64 `json:"votes"`
	Matches int64 `json:"matches"`
}
