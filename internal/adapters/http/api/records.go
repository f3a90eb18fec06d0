package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	service "github.com/gaeliam100/unravel-sql-game-back/internal/app"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// RecordsDependencies defines the interface for run submission.
type RecordsDependencies interface {
	SubmitRun(ctx context.Context, authPlayerID string, sub model.RunSubmission) (service.SubmitResult, error)
}

// RecordsHandler handles run submissions.
type RecordsHandler struct {
	deps RecordsDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordsDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// recordRequest mirrors the OpenAPI schema for POST /records. Fields stay
// raw until the ownership and difficulty checks have answered, so a bad
// number never masks a 403.
type recordRequest struct {
	Time         json.RawMessage `json:"time"`
	Level        json.RawMessage `json:"level"`
	Difficulty   json.RawMessage `json:"difficulty"`
	ErrorCount   json.RawMessage `json:"errorCount"`
	IDUser       json.RawMessage `json:"idUser"`
	SubmissionID string          `json:"submissionId"`
}

// screen applies, in order, the checks that need no numeric parsing:
// required fields, ownership, difficulty.
func (req recordRequest) screen(authPlayerID string) error {
	const op = "api.screen_record"
	for _, f := range []struct {
		name string
		raw  json.RawMessage
	}{
		{"time", req.Time},
		{"level", req.Level},
		{"difficulty", req.Difficulty},
		{"errorCount", req.ErrorCount},
		{"idUser", req.IDUser},
	} {
		if len(f.raw) == 0 {
			return model.E(op, model.ErrValidation, fmt.Errorf("missing required field: %s", f.name))
		}
	}

	var idUser string
	if err := json.Unmarshal(req.IDUser, &idUser); err != nil || idUser != authPlayerID {
		return model.E(op, model.ErrForbidden, errors.New("user id mismatch"))
	}

	var difficulty string
	if err := json.Unmarshal(req.Difficulty, &difficulty); err != nil {
		difficulty = string(req.Difficulty)
	}
	if _, err := model.ParseDifficulty(difficulty); err != nil {
		return model.E(op, model.ErrValidation, err)
	}
	return nil
}

// submission parses the numeric fields. JSON numbers and numeric strings
// are accepted; anything else is ErrInvalidNumber.
func (req recordRequest) submission() (model.RunSubmission, error) {
	var idUser, difficulty string
	_ = json.Unmarshal(req.IDUser, &idUser)
	_ = json.Unmarshal(req.Difficulty, &difficulty)

	sub := model.RunSubmission{
		PlayerID:     &idUser,
		Difficulty:   &difficulty,
		SubmissionID: strings.TrimSpace(req.SubmissionID),
	}
	for _, f := range []struct {
		raw json.RawMessage
		dst **int
	}{
		{req.Time, &sub.ElapsedSeconds},
		{req.Level, &sub.Level},
		{req.ErrorCount, &sub.ErrorCount},
	} {
		n, err := parseInt(f.raw)
		if err != nil {
			return model.RunSubmission{}, err
		}
		*f.dst = &n
	}
	return sub, nil
}

func parseInt(raw json.RawMessage) (int, error) {
	b := bytes.TrimSpace(raw)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidNumber, b)
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, b)
	}
	return n, nil
}

type recordResponse struct {
	Message   string `json:"message"`
	ID        string `json:"uuid,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// HandleCreate handles POST /records and its /create-record alias.
func (h *RecordsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_record"

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("no data provided"))
		return
	}

	authPlayerID := PlayerID(r.Context())
	if err := req.screen(authPlayerID); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidNumber)
		return
	}

	res, err := h.deps.SubmitRun(r.Context(), authPlayerID, sub)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, recordResponse{Message: "Record already saved", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{Message: "Record saved successfully", ID: res.Record.ID})
}
