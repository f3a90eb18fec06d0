package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

//go:embed schema.sql
var schemaSQL string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore is the Store backed by a pgx connection pool. Group-reduce
// reads run as GROUP BY queries over the runs table.
type PostgresStore struct {
	opts options
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects a pool to dsn and pings it.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, model.E("repository.NewPostgresStore", model.ErrStoreUnavailable, fmt.Errorf("parse dsn: %w", err))
	}
	cfg.MaxConns = o.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, model.E("repository.NewPostgresStore", model.ErrStoreUnavailable, fmt.Errorf("create pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, model.E("repository.NewPostgresStore", model.ErrStoreUnavailable, fmt.Errorf("ping: %w", err))
	}
	return &PostgresStore{opts: o, pool: pool}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) (err error) {
	defer observe(driverPostgres, "migrate")(&err)
	if _, err = s.pool.Exec(ctx, schemaSQL); err != nil {
		return storeErr("repository.Migrate", err)
	}
	return nil
}

// storeErr classifies a driver error.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.E(op, model.ErrNotFound, nil)
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return model.E(op, model.ErrConflict, err)
	case errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation:
		return model.E(op, model.ErrValidation, fmt.Errorf("unknown player: %w", err))
	default:
		return model.E(op, model.ErrStoreUnavailable, err)
	}
}

// Append implements RunStore.
func (s *PostgresStore) Append(ctx context.Context, rec model.RunRecord) (_ model.RunRecord, err error) {
	const op = "repository.Append"
	defer observe(driverPostgres, "append")(&err)

	if cerr := rec.Check(); cerr != nil {
		return model.RunRecord{}, model.E(op, model.ErrValidation, cerr)
	}
	if rec.ID == "" {
		rec.ID = s.opts.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.opts.now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (id, player_id, level, difficulty, elapsed, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.PlayerID, rec.Level, string(rec.Difficulty), rec.ElapsedSeconds, rec.ErrorCount, rec.CreatedAt)
	if err != nil {
		return model.RunRecord{}, storeErr(op, err)
	}
	return rec, nil
}

// BestPerPlayer implements RunStore.
func (s *PostgresStore) BestPerPlayer(ctx context.Context, difficulty model.Difficulty, level int) (_ []model.BestRun, err error) {
	const op = "repository.BestPerPlayer"
	defer observe(driverPostgres, "best_per_player")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT player_id, level, MIN(elapsed), MIN(errors)
		FROM runs
		WHERE difficulty = $1 AND level = $2 AND elapsed > 0
		GROUP BY player_id, level
		ORDER BY player_id`,
		string(difficulty), level)
	if err != nil {
		return nil, storeErr(op, err)
	}
	out, err := collectBestRuns(rows)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// BestPerPlayerPerLevel implements RunStore.
func (s *PostgresStore) BestPerPlayerPerLevel(ctx context.Context, difficulty model.Difficulty) (_ []model.BestRun, err error) {
	const op = "repository.BestPerPlayerPerLevel"
	defer observe(driverPostgres, "best_per_player_per_level")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT player_id, level, MIN(elapsed), MIN(errors)
		FROM runs
		WHERE difficulty = $1 AND elapsed > 0
		GROUP BY player_id, level
		ORDER BY player_id, level`,
		string(difficulty))
	if err != nil {
		return nil, storeErr(op, err)
	}
	out, err := collectBestRuns(rows)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func collectBestRuns(rows pgx.Rows) ([]model.BestRun, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BestRun, error) {
		var b model.BestRun
		err := row.Scan(&b.PlayerID, &b.Level, &b.BestTime, &b.BestErrors)
		return b, err
	})
}

// CreatePlayer implements PlayerStore.
func (s *PostgresStore) CreatePlayer(ctx context.Context, p model.Player) (_ model.Player, err error) {
	defer observe(driverPostgres, "create_player")(&err)

	if p.ID == "" {
		p.ID = s.opts.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.opts.now()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO players (id, display_name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.DisplayName, p.PasswordHash, p.CreatedAt)
	if err != nil {
		return model.Player{}, storeErr("repository.CreatePlayer", err)
	}
	return p, nil
}

// PlayerByID implements PlayerStore.
func (s *PostgresStore) PlayerByID(ctx context.Context, id string) (_ model.Player, err error) {
	defer observe(driverPostgres, "player_by_id")(&err)
	return s.playerWhere(ctx, "repository.PlayerByID", "id", id)
}

// PlayerByName implements PlayerStore.
func (s *PostgresStore) PlayerByName(ctx context.Context, name string) (_ model.Player, err error) {
	defer observe(driverPostgres, "player_by_name")(&err)
	return s.playerWhere(ctx, "repository.PlayerByName", "display_name", name)
}

// playerWhere selects one player by a fixed column name; column is never user input.
func (s *PostgresStore) playerWhere(ctx context.Context, op, column, value string) (model.Player, error) {
	var p model.Player
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, password_hash, created_at FROM players WHERE `+column+` = $1`, value).
		Scan(&p.ID, &p.DisplayName, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		return model.Player{}, storeErr(op, err)
	}
	return p, nil
}

// DisplayNames implements PlayerStore.
func (s *PostgresStore) DisplayNames(ctx context.Context, ids []string) (_ map[string]string, err error) {
	const op = "repository.DisplayNames"
	defer observe(driverPostgres, "display_names")(&err)

	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, display_name FROM players WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err = rows.Scan(&id, &name); err != nil {
			return nil, storeErr(op, err)
		}
		out[id] = name
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// CreateSession implements SessionStore.
func (s *PostgresStore) CreateSession(ctx context.Context, sess model.Session) (err error) {
	defer observe(driverPostgres, "create_session")(&err)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (token, player_id, kind, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.Token, sess.PlayerID, string(sess.Kind), sess.CreatedAt, sess.ExpiresAt, sess.RevokedAt)
	if err != nil {
		return storeErr("repository.CreateSession", err)
	}
	return nil
}

// SessionByToken implements SessionStore.
func (s *PostgresStore) SessionByToken(ctx context.Context, token string) (_ model.Session, err error) {
	defer observe(driverPostgres, "session_by_token")(&err)

	var (
		sess model.Session
		kind string
	)
	err = s.pool.QueryRow(ctx, `
		SELECT token, player_id, kind, created_at, expires_at, revoked_at
		FROM sessions WHERE token = $1`, token).
		Scan(&sess.Token, &sess.PlayerID, &kind, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		return model.Session{}, storeErr("repository.SessionByToken", err)
	}
	sess.Kind = model.TokenKind(kind)
	return sess, nil
}

// RevokeSession implements SessionStore.
func (s *PostgresStore) RevokeSession(ctx context.Context, token string, at time.Time) (err error) {
	const op = "repository.RevokeSession"
	defer observe(driverPostgres, "revoke_session")(&err)

	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE token = $1`, token, at)
	if err != nil {
		return storeErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return model.E(op, model.ErrNotFound, nil)
	}
	return nil
}

// RevokePlayerSessions implements SessionStore.
func (s *PostgresStore) RevokePlayerSessions(ctx context.Context, playerID string, at time.Time) (err error) {
	defer observe(driverPostgres, "revoke_player_sessions")(&err)
	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE player_id = $1 AND revoked_at IS NULL`, playerID, at)
	if err != nil {
		return storeErr("repository.RevokePlayerSessions", err)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storeErr("repository.Ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
