package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// SandboxDependencies defines the SQL exercise validator.
type SandboxDependencies interface {
	ValidateSQL(ctx context.Context, exercise sandbox.Exercise, query string) (sandbox.Result, error)
}

// SandboxHandler handles SQL exercise validation.
type SandboxHandler struct {
	deps SandboxDependencies
}

// NewSandboxHandler creates a new sandbox handler.
func NewSandboxHandler(deps SandboxDependencies) *SandboxHandler {
	return &SandboxHandler{deps: deps}
}

type validateRequest struct {
	Exercise sandbox.Exercise `json:"exercise"`
	Query    *string          `json:"query"`
}

// HandleValidate handles POST /api/validate-sql. The validator's verdict is
// returned with its own status code.
func (h *SandboxHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate_sql"

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("query is required"))
		return
	}

	res, err := h.deps.ValidateSQL(r.Context(), req.Exercise, *req.Query)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", errors.New("exercise database unavailable"))
			return
		}
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, res.Code, res)
}
