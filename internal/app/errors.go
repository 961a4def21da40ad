package service

import "errors"

// Sentinel kinds returned by the engine. Callers match with errors.Is.
var (
	// ErrInvalidOutcome wraps every reason a vote is refused before any mutation.
	ErrInvalidOutcome   = errors.New("invalid outcome")
	ErrSameProfile      = errors.New("winner and loser are the same profile")
	ErrMalformedID      = errors.New("malformed profile id")
	ErrCategoryMismatch = errors.New("profiles belong to different categories")
	ErrInactiveProfile  = errors.New("profile is inactive")

	ErrProfileNotFound = errors.New("profile not found")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")

	// ErrStoreFailure is a transient failure; the whole call may be retried.
	ErrStoreFailure     = errors.New("store failure")
	ErrRetriesExhausted = errors.New("conflict retries exhausted")
)
