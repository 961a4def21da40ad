package api

import (
	"context"
	"net/http"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

// PairDependencies defines the interface for match selection.
type PairDependencies interface {
	SelectPair(ctx context.Context, category string) (model.MatchPair, bool, error)
}

// PairHandler handles match pair requests.
type PairHandler struct {
	deps PairDependencies
}

// NewPairHandler creates a new pair handler.
func NewPairHandler(deps PairDependencies) *PairHandler {
	return &PairHandler{deps: deps}
}

// HandleGetPair handles GET /pair?category=C requests.
// A category with fewer than two active profiles yields an empty pair, not an error.
func (h *PairHandler) HandleGetPair(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_pair"
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	pair, ok, err := h.deps.SelectPair(r.Context(), category)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, types.PairResponse{Empty: true})
		return
	}
	writeJSON(w, http.StatusOK, types.PairResponse{
		Pair: &types.Pair{
			Left:  types.NewProfileView(pair.Left),
			Right: types.NewProfileView(pair.Right),
		},
	})
}
