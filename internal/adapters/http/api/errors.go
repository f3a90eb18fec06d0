package api

import "errors"

// Sentinel kinds for transport errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingToken  = errors.New("missing authorization token")
	ErrInvalidNumber = errors.New("time, level, and errorCount must be valid integers")
)
