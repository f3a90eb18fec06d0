package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	now      func() time.Time
	newID    func() string
	maxConns int32
}

func defaultOptions() options {
	return options{
		now:      time.Now,
		newID:    uuid.NewString,
		maxConns: 10,
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides the run id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithMaxConns caps the Postgres pool size. Ignored by the memory store.
func WithMaxConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = int32(n) //nolint:gosec // bounded by config validation
		}
	}
}
