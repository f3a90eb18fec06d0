// Package repository defines the persistence interfaces and their memory and Postgres implementations.
package repository

import (
	"context"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// RunStore is the append-only run log plus the two group-reduce reads the
// ranking engines need. Runs with ElapsedSeconds == 0 never reach a reduce.
type RunStore interface {
	// Append persists one record atomically. It assigns ID and CreatedAt when
	// empty and rejects structurally invalid records with model.ErrValidation.
	Append(ctx context.Context, rec model.RunRecord) (model.RunRecord, error)

	// BestPerPlayer reduces the runs of one (difficulty, level) pair to one
	// BestRun per player: min time and min errors, taken independently.
	BestPerPlayer(ctx context.Context, difficulty model.Difficulty, level int) ([]model.BestRun, error)

	// BestPerPlayerPerLevel reduces the runs of a difficulty to one BestRun
	// per (player, level).
	BestPerPlayerPerLevel(ctx context.Context, difficulty model.Difficulty) ([]model.BestRun, error)
}

// PlayerStore holds registered identities.
type PlayerStore interface {
	// CreatePlayer returns model.ErrConflict when the display name is taken.
	CreatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	PlayerByID(ctx context.Context, id string) (model.Player, error)
	PlayerByName(ctx context.Context, name string) (model.Player, error)
	// DisplayNames resolves ids to display names. Unknown ids are absent from the result.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// SessionStore holds issued bearer tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s model.Session) error
	SessionByToken(ctx context.Context, token string) (model.Session, error)
	RevokeSession(ctx context.Context, token string, at time.Time) error
	RevokePlayerSessions(ctx context.Context, playerID string, at time.Time) error
}

// Store is everything the service persists.
type Store interface {
	RunStore
	PlayerStore
	SessionStore

	Ping(ctx context.Context) error
	Close() error
}
