package api

import (
	"context"
	"net/http"
	"strconv"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	EffectiveLimit(limit int) (int, error)
	TopProfiles(ctx context.Context, category string, limit int) ([]model.Profile, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard?category=C&limit=N requests.
// A missing limit uses the default; a limit above the maximum is clamped.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	n := 0
	if s := q.Get("limit"); s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	limit, err := h.deps.EffectiveLimit(n)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	profiles, err := h.deps.TopProfiles(r.Context(), category, limit)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewLeaderboard(category, limit, profiles))
}
