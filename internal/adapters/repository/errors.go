package repository

import (
	"errors"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// Driver names used in metrics labels.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
)

// ErrClosed is the cause reported (under model.ErrStoreUnavailable) by a store used after Close.
var ErrClosed = errors.New("store is closed")

// observe starts timing one store operation; call the result with the
// operation's named error on return:
//
//	defer observe(driverMemory, "append")(&err)
//
// Not-found, conflict and validation outcomes are answers, not failures.
func observe(driver, op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		err := *errp
		failed := err != nil &&
			!errors.Is(err, model.ErrNotFound) &&
			!errors.Is(err, model.ErrConflict) &&
			!errors.Is(err, model.ErrValidation)
		metrics.RecordStoreQuery(driver, op, float64(time.Since(start).Microseconds())/1000, failed)
		if failed {
			metrics.RecordErrorByComponent("repository", "unavailable")
		}
	}
}
