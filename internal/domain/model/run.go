package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxRunValue bounds level, time and error count to the stores' int4 columns.
const MaxRunValue = math.MaxInt32

// RunRecord is one completed (or abandoned) attempt. Records are append-only.
// ElapsedSeconds == 0 marks an incomplete run that never ranks.
type RunRecord struct {
	ID             string     `json:"uuid"`
	PlayerID       string     `json:"idUser"`
	Level          int        `json:"level"`
	Difficulty     Difficulty `json:"difficulty"`
	ElapsedSeconds int        `json:"time"`
	ErrorCount     int        `json:"errorCount"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Check verifies the structural invariants a stored record must hold.
func (r RunRecord) Check() error {
	switch {
	case strings.TrimSpace(r.PlayerID) == "":
		return errors.New("missing player id")
	case !r.Difficulty.Valid():
		return fmt.Errorf("invalid difficulty %q", r.Difficulty)
	case r.Level < 1:
		return errors.New("level must be >= 1")
	case r.ElapsedSeconds < 0:
		return errors.New("time must be >= 0")
	case r.ErrorCount < 0:
		return errors.New("errorCount must be >= 0")
	case r.Level > MaxRunValue, r.ElapsedSeconds > MaxRunValue, r.ErrorCount > MaxRunValue:
		return fmt.Errorf("time, level, and errorCount must be <= %d", MaxRunValue)
	}
	return nil
}

// RunSubmission is the unvalidated write request. Pointer fields distinguish
// "missing" from zero.
type RunSubmission struct {
	PlayerID       *string `json:"idUser"`
	Level          *int    `json:"level"`
	Difficulty     *string `json:"difficulty"`
	ElapsedSeconds *int    `json:"time"`
	ErrorCount     *int    `json:"errorCount"`
	// SubmissionID is an optional client key that makes retries idempotent.
	SubmissionID string `json:"submissionId,omitempty"`
}

// MissingField returns the first required field that is absent, or "".
func (s RunSubmission) MissingField() string {
	switch {
	case s.ElapsedSeconds == nil:
		return "time"
	case s.Level == nil:
		return "level"
	case s.Difficulty == nil:
		return "difficulty"
	case s.ErrorCount == nil:
		return "errorCount"
	case s.PlayerID == nil:
		return "idUser"
	}
	return ""
}

// Record converts a submission whose fields are all present into a record.
// Range checks are applied by the caller through RunRecord.Check.
func (s RunSubmission) Record() RunRecord {
	r := RunRecord{}
	if s.PlayerID != nil {
		r.PlayerID = *s.PlayerID
	}
	if s.Level != nil {
		r.Level = *s.Level
	}
	if s.Difficulty != nil {
		r.Difficulty = Difficulty(*s.Difficulty)
	}
	if s.ElapsedSeconds != nil {
		r.ElapsedSeconds = *s.ElapsedSeconds
	}
	if s.ErrorCount != nil {
		r.ErrorCount = *s.ErrorCount
	}
	return r
}

// BestRun is a player's reduced result for one (difficulty, level) pair.
// BestTime and BestErrors are independent minima over the group, so
// BestErrors is not necessarily the error count of the fastest run.
type BestRun struct {
	PlayerID   string
	Level      int
	BestTime   int
	BestErrors int
}
