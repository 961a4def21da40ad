package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/types"
)

// VoteDependencies defines the interface for recording outcomes.
type VoteDependencies interface {
	dedupe.Deduper
	RecordOutcome(ctx context.Context, winnerID, loserID string) (service.Result, error)
}

// voteRequest mirrors the OpenAPI schema for POST /votes.
// Id shape and equality are checked by the engine after canonicalization.
type voteRequest struct {
	WinnerID     string `json:"winner_id" validate:"required"`
	LoserID      string `json:"loser_id" validate:"required"`
	SubmissionID string `json:"submission_id,omitempty" validate:"omitempty,max=128"`
}

// VotesHandler handles vote submissions.
type VotesHandler struct {
	deps     VoteDependencies
	validate *validator.Validate
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies) *VotesHandler {
	return &VotesHandler{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HandlePostVote handles POST /votes requests.
func (h *VotesHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_outcome", WrapKind(op, service.ErrInvalidOutcome, err))
		return
	}

	// Idempotency check - mark as seen first
	if req.SubmissionID != "" && h.deps.SeenAndRecord(r.Context(), req.SubmissionID) {
		writeJSON(w, http.StatusOK, types.VoteResponse{Status: types.VoteStatusDuplicate, Duplicate: true})
		return
	}

	res, err := h.deps.RecordOutcome(r.Context(), req.WinnerID, req.LoserID)
	if err != nil {
		// Nothing was recorded, so the same submission may be retried.
		if req.SubmissionID != "" {
			h.deps.Unrecord(r.Context(), req.SubmissionID)
		}
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.VoteResponse{
		Status: types.VoteStatusRecorded,
		VoteID: res.Vote.ID,
		Winner: &types.RatingChange{ID: res.Winner.ID, Rating: res.Winner.Rating},
		Loser:  &types.RatingChange{ID: res.Loser.ID, Rating: res.Loser.Rating},
	})
}
