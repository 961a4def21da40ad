package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("profile not found")
	ErrConflict        = errors.New("version conflict")
	ErrUnavailable     = errors.New("store unavailable")
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")
	ErrInvalidArgument = errors.New("invalid store argument")
)
