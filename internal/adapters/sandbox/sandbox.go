// Package sandbox checks players' answers to the SQL exercises.
//
// Schema exercises (creating, listing and selecting a database) are checked
// against a pattern only. Data exercises run the player's query read-only
// against the exercise database and pass on the expected row count.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// Result is the verdict returned to the client. Code mirrors the HTTP status
// the verdict is served with.
type Result struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

var (
	resultSuccess = Result{Msg: "success", Code: 200}
	resultWrong   = Result{Msg: "error", Code: 400}
)

// Exercise identifies an exercise, e.g. "3.2". JSON numbers are accepted.
type Exercise string

func (e *Exercise) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = Exercise(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("exercise must be a string or number: %w", err)
	}
	*e = Exercise(n.String())
	return nil
}

// Executor runs a read-only query and counts its rows, stopping at limit.
type Executor interface {
	CountRows(ctx context.Context, query string, limit int) (int, error)
}

// patternExercises are checked without touching a database.
var patternExercises = map[Exercise]bool{"1.1": true, "1.2": true, "1.3": true, "2.1": true}

// exactRows lists data exercises with an exact expected row count; all
// others pass with at least one row.
var exactRows = map[Exercise]int{"3.2": 1, "3.3": 1, "3.4": 1, "4.2": 2}

var schemaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^create database (.*);$`),
	regexp.MustCompile(`^show tables from (.*);$`),
	regexp.MustCompile(`^use (.*);$`),
}

// Validator evaluates answers. A nil Executor disables data exercises.
type Validator struct {
	exec    Executor
	maxRows int
}

// NewValidator creates a Validator. maxRows caps how many rows are read.
func NewValidator(exec Executor, maxRows int) *Validator {
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &Validator{exec: exec, maxRows: maxRows}
}

// Validate checks query as the answer to exercise. Wrong answers and SQL
// errors are verdicts (Code 400), not errors. Errors are returned for empty
// input (model.ErrValidation) and for an unreachable or unconfigured
// exercise database (model.ErrStoreUnavailable).
func (v *Validator) Validate(ctx context.Context, exercise Exercise, query string) (res Result, err error) {
	const op = "sandbox.Validate"

	if exercise == "" {
		return Result{}, model.E(op, model.ErrValidation, errors.New("exercise is required"))
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, model.E(op, model.ErrValidation, errors.New("query is required"))
	}

	if patternExercises[exercise] {
		res = matchSchemaStatement(query)
		metrics.RecordSandboxValidation("pattern", outcome(res, nil))
		return res, nil
	}

	defer func() { metrics.RecordSandboxValidation("query", outcome(res, err)) }()

	if v.exec == nil {
		return Result{}, model.E(op, model.ErrStoreUnavailable, errors.New("exercise database is not configured"))
	}
	stmt, rerr := readOnlyStatement(query)
	if rerr != nil {
		return sqlError(rerr), nil
	}

	n, err := v.exec.CountRows(ctx, stmt, v.maxRows)
	if err != nil {
		var pqErr *pq.Error
		switch {
		case errors.As(err, &pqErr):
			return sqlError(pqErr), nil
		case errors.Is(err, context.DeadlineExceeded):
			return sqlError(errors.New("statement timed out")), nil
		default:
			return Result{}, model.E(op, model.ErrStoreUnavailable, err)
		}
	}

	if want, exact := exactRows[exercise]; exact {
		if n == want {
			return resultSuccess, nil
		}
		return resultWrong, nil
	}
	if n > 0 {
		return resultSuccess, nil
	}
	return resultWrong, nil
}

func matchSchemaStatement(query string) Result {
	q := strings.ToLower(query)
	for _, re := range schemaPatterns {
		if re.MatchString(q) {
			return resultSuccess
		}
	}
	return resultWrong
}

// readOnlyStatement accepts a single SELECT or WITH statement and strips
// its trailing semicolon.
func readOnlyStatement(query string) (string, error) {
	stmt := strings.TrimSpace(query)
	stmt = strings.TrimSpace(strings.TrimRight(stmt, ";"))
	if strings.Contains(stmt, ";") {
		return "", errors.New("only one statement is allowed")
	}
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "", errors.New("empty statement")
	}
	if head := strings.ToLower(fields[0]); head != "select" && head != "with" {
		return "", errors.New("only SELECT queries are allowed")
	}
	return stmt, nil
}

func sqlError(err error) Result {
	return Result{Msg: "SQL Error: " + err.Error(), Code: 400}
}

func outcome(res Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case res.Code == 200:
		return "success"
	default:
		return "wrong"
	}
}
