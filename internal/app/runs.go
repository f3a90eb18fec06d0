package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/dedupe"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// SubmitResult acknowledges a run submission.
type SubmitResult struct {
	Record    model.RunRecord
	Duplicate bool
}

// SubmitRun validates a submission from the authenticated player and appends
// it. Checks run in order: required fields, ownership, difficulty, ranges.
// A repeated SubmissionID from the same player is acknowledged without a
// second append.
func (s *Service) SubmitRun(ctx context.Context, authPlayerID string, sub model.RunSubmission) (SubmitResult, error) {
	const op = "service.SubmitRun"
	c, err := s.snapshot()
	if err != nil {
		return SubmitResult{}, err
	}

	if field := sub.MissingField(); field != "" {
		metrics.RecordRunRejected("missing_field")
		return SubmitResult{}, model.E(op, model.ErrValidation, fmt.Errorf("missing required field: %s", field))
	}
	if *sub.PlayerID != authPlayerID {
		metrics.RecordRunRejected("forbidden")
		return SubmitResult{}, model.E(op, model.ErrForbidden, errors.New("user id mismatch"))
	}
	if _, err := model.ParseDifficulty(*sub.Difficulty); err != nil {
		metrics.RecordRunRejected("difficulty")
		return SubmitResult{}, model.E(op, model.ErrValidation, err)
	}
	rec := sub.Record()
	if rec.ElapsedSeconds < 0 || rec.Level < 1 || rec.ErrorCount < 0 {
		metrics.RecordRunRejected("range")
		return SubmitResult{}, model.E(op, model.ErrValidation, errors.New("time and errorCount must be >= 0, level must be >= 1"))
	}
	if err := rec.Check(); err != nil {
		metrics.RecordRunRejected("range")
		return SubmitResult{}, model.E(op, model.ErrValidation, err)
	}

	var key string
	if sub.SubmissionID != "" {
		key = dedupe.Key(authPlayerID, sub.SubmissionID)
		if c.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordRunDuplicate()
			c.logger.Debug(ctx, "duplicate run submission", logger.String("submission_id", sub.SubmissionID))
			return SubmitResult{Duplicate: true}, nil
		}
	}

	stored, err := c.store.Append(ctx, rec)
	if err != nil {
		if key != "" {
			c.deduper.Unrecord(ctx, key)
		}
		metrics.RecordRunRejected("store")
		c.logger.Error(ctx, "append run failed", logger.String("player_id", authPlayerID), logger.Error(err))
		return SubmitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordRunSubmitted(string(stored.Difficulty))
	return SubmitResult{Record: stored}, nil
}

// LevelRanking validates the path parameters and computes the per-level view.
func (s *Service) LevelRanking(ctx context.Context, difficulty string, level int, playerID string) (model.LevelRankingView, error) {
	const op = "service.LevelRanking"
	c, err := s.snapshot()
	if err != nil {
		return model.LevelRankingView{}, err
	}

	d, err := model.ParseDifficulty(difficulty)
	if err != nil {
		return model.LevelRankingView{}, model.E(op, model.ErrValidation, err)
	}
	if level < 1 {
		return model.LevelRankingView{}, model.E(op, model.ErrValidation, errors.New("level must be >= 1"))
	}
	view, err := c.engine.ComputeLevelRanking(ctx, d, level, playerID)
	if err != nil {
		c.logger.Error(ctx, "level ranking failed", logger.String("difficulty", difficulty), logger.Int("level", level), logger.Error(err))
		return model.LevelRankingView{}, err
	}
	return view, nil
}

// GlobalRanking computes the cross-level view. Difficulty is validated by
// the engine, which reports model.ErrInvalidArgument.
func (s *Service) GlobalRanking(ctx context.Context, difficulty string, playerID string) (model.GlobalRankingView, error) {
	c, err := s.snapshot()
	if err != nil {
		return model.GlobalRankingView{}, err
	}
	view, err := c.engine.ComputeGlobalRanking(ctx, model.Difficulty(difficulty), playerID)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidArgument) {
			c.logger.Error(ctx, "global ranking failed", logger.String("difficulty", difficulty), logger.Error(err))
		}
		return model.GlobalRankingView{}, err
	}
	return view, nil
}
