// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/dedupe"
	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	SelectPair(ctx context.Context, category string) (model.MatchPair, bool, error)
	RecordOutcome(ctx context.Context, winnerID, loserID string) (service.Result, error)

	// Read operations expose leaderboard data.
	EffectiveLimit(limit int) (int, error)
	TopProfiles(ctx context.Context, category string, limit int) ([]model.Profile, error)
	ProfileRank(ctx context.Context, id string) (model.Ranked, error)

	Ping(ctx context.Context) error
	DemoMode() bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps               Dependencies
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	pairHandler        *PairHandler
	votesHandler       *VotesHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		deps:               deps,
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		pairHandler:        NewPairHandler(deps),
		votesHandler:       NewVotesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /pair", MetricsMiddleware(s.pairHandler.HandleGetPair, "pair"))
	mux.HandleFunc("POST /votes", MetricsMiddleware(s.votesHandler.HandlePostVote, "votes"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /profiles/{id}/rank", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

// Handler returns the routed API, marked as demo content when the engine runs in demo mode.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	if s.deps.DemoMode() {
		return DemoMiddleware(mux)
	}
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates engine errors to status codes.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidOutcome):
		return http.StatusBadRequest, "invalid_outcome"
	case errors.Is(err, service.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	case errors.Is(err, service.ErrInvalidLimit):
		return http.StatusBadRequest, "invalid_limit"
	case errors.Is(err, service.ErrMalformedID):
		return http.StatusBadRequest, "malformed_id"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrStoreFailure), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
