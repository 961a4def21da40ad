package api

import (
	"context"
	"net/http"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	ProfileRank(ctx context.Context, id string) (model.Ranked, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /profiles/{id}/rank requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	ranked, err := h.deps.ProfileRank(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RankResponse{
		Position: ranked.Position,
		Profile:  types.NewProfileView(ranked.Profile),
	})
}
