package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// RankingDependencies defines the interface for ranking reads.
type RankingDependencies interface {
	LevelRanking(ctx context.Context, difficulty string, level int, playerID string) (model.LevelRankingView, error)
	GlobalRanking(ctx context.Context, difficulty string, playerID string) (model.GlobalRankingView, error)
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps RankingDependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

type levelRankingResponse struct {
	model.LevelRankingView
	Message string `json:"message,omitempty"`
}

// HandleLevel handles GET /ranking/{difficulty}/{level}.
func (h *RankingHandler) HandleLevel(w http.ResponseWriter, r *http.Request) {
	const op = "api.level_ranking"
	vars := mux.Vars(r)

	level, err := strconv.Atoi(vars["level"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("level must be an integer"))
		return
	}
	view, err := h.deps.LevelRanking(r.Context(), vars["difficulty"], level, PlayerID(r.Context()))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}

	resp := levelRankingResponse{LevelRankingView: view}
	if view.TotalPlayers == 0 {
		resp.Message = "No players have completed this level yet"
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGlobal handles GET /ranking/{difficulty}.
func (h *RankingHandler) HandleGlobal(w http.ResponseWriter, r *http.Request) {
	const op = "api.global_ranking"

	view, err := h.deps.GlobalRanking(r.Context(), mux.Vars(r)["difficulty"], PlayerID(r.Context()))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
