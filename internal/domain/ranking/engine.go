// Package ranking derives leaderboards from the run log.
//
// The Engine holds no leaderboard state: each call re-reads the store's
// group-reduced best runs, joins display names, sorts and assigns ranks.
// Two calls with no write in between return identical views.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// Store is the read side the engine needs.
type Store interface {
	BestPerPlayer(ctx context.Context, difficulty model.Difficulty, level int) ([]model.BestRun, error)
	BestPerPlayerPerLevel(ctx context.Context, difficulty model.Difficulty) ([]model.BestRun, error)
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Engine computes per-level and global rankings.
type Engine struct {
	store               Store
	levelTop            int
	globalTop           int
	levelsPerDifficulty int
}

// NewEngine creates an Engine reading from store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		levelTop:            DefaultLevelTop,
		globalTop:           DefaultGlobalTop,
		levelsPerDifficulty: DefaultLevelsPerDifficulty,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LevelsPerDifficulty reports the completion threshold in use.
func (e *Engine) LevelsPerDifficulty() int { return e.levelsPerDifficulty }

// entry is a ranked candidate before it becomes a RankingRow.
type entry struct {
	playerID string
	name     string
	time     int
	errors   int
	levels   int
}

// ComputeLevelRanking ranks the players that completed one level. It does
// not validate difficulty or level; callers do. Zero qualifying players is
// a valid empty view. Store failures are returned, never an empty view.
func (e *Engine) ComputeLevelRanking(ctx context.Context, difficulty model.Difficulty, level int, currentPlayerID string) (_ model.LevelRankingView, err error) {
	const op = "ranking.ComputeLevelRanking"
	defer observe("level", time.Now(), &err)

	best, err := e.store.BestPerPlayer(ctx, difficulty, level)
	if err != nil {
		return model.LevelRankingView{}, wrapStore(op, err)
	}

	entries := make([]entry, 0, len(best))
	for _, b := range best {
		entries = append(entries, entry{playerID: b.PlayerID, time: b.BestTime, errors: b.BestErrors})
	}
	if entries, err = e.joinNames(ctx, entries); err != nil {
		return model.LevelRankingView{}, wrapStore(op, err)
	}
	sortEntries(entries)

	top, current := rankRows(entries, e.levelTop, currentPlayerID)
	metrics.UpdateRankingPlayers("level", string(difficulty), len(entries))
	return model.LevelRankingView{
		Level:            level,
		Difficulty:       difficulty,
		Top:              top,
		CurrentPlayerRow: current,
		TotalPlayers:     len(entries),
	}, nil
}

// ComputeGlobalRanking ranks players by their summed best runs across a
// difficulty. Only players with a completed run on at least
// LevelsPerDifficulty distinct levels are eligible. An unknown difficulty
// fails with model.ErrInvalidArgument.
func (e *Engine) ComputeGlobalRanking(ctx context.Context, difficulty model.Difficulty, currentPlayerID string) (_ model.GlobalRankingView, err error) {
	const op = "ranking.ComputeGlobalRanking"
	defer observe("global", time.Now(), &err)

	if !difficulty.Valid() {
		_, perr := model.ParseDifficulty(string(difficulty))
		return model.GlobalRankingView{}, model.E(op, model.ErrInvalidArgument, perr)
	}

	best, err := e.store.BestPerPlayerPerLevel(ctx, difficulty)
	if err != nil {
		return model.GlobalRankingView{}, wrapStore(op, err)
	}

	byPlayer := make(map[string]*entry)
	order := make([]string, 0)
	levelsSeen := make(map[string]map[int]struct{})
	for _, b := range best {
		acc, ok := byPlayer[b.PlayerID]
		if !ok {
			acc = &entry{playerID: b.PlayerID}
			byPlayer[b.PlayerID] = acc
			levelsSeen[b.PlayerID] = make(map[int]struct{})
			order = append(order, b.PlayerID)
		}
		acc.time += b.BestTime
		acc.errors += b.BestErrors
		levelsSeen[b.PlayerID][b.Level] = struct{}{}
	}

	entries := make([]entry, 0, len(order))
	for _, id := range order {
		acc := byPlayer[id]
		acc.levels = len(levelsSeen[id])
		if acc.levels >= e.levelsPerDifficulty {
			entries = append(entries, *acc)
		}
	}
	if entries, err = e.joinNames(ctx, entries); err != nil {
		return model.GlobalRankingView{}, wrapStore(op, err)
	}
	sortEntries(entries)

	top, current := rankRows(entries, e.globalTop, currentPlayerID)
	metrics.UpdateRankingPlayers("global", string(difficulty), len(entries))
	return model.GlobalRankingView{
		Difficulty:       difficulty,
		Top:              top,
		CurrentPlayerRow: current,
		TotalPlayers:     len(entries),
	}, nil
}

// joinNames attaches display names. Entries whose player is unknown are
// dropped, as an inner join would.
func (e *Engine) joinNames(ctx context.Context, entries []entry) ([]entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}
	ids := make([]string, len(entries))
	for i, en := range entries {
		ids[i] = en.playerID
	}
	names, err := e.store.DisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, en := range entries {
		name, ok := names[en.playerID]
		if !ok {
			continue
		}
		en.name = name
		out = append(out, en)
	}
	return out, nil
}

// sortEntries orders by time, then errors, then player id so the order is
// total and independent of store row order.
func sortEntries(entries []entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.time != b.time {
			return a.time < b.time
		}
		if a.errors != b.errors {
			return a.errors < b.errors
		}
		return a.playerID < b.playerID
	})
}

// rankRows assigns dense 1-based ranks by position, returns the first n rows
// and the current player's row from anywhere in the sequence.
func rankRows(entries []entry, n int, currentPlayerID string) ([]model.RankingRow, *model.RankingRow) {
	top := make([]model.RankingRow, 0, min(n, len(entries)))
	var current *model.RankingRow
	for i, en := range entries {
		row := model.RankingRow{
			Rank:            i + 1,
			PlayerID:        en.playerID,
			DisplayName:     en.name,
			Time:            en.time,
			ErrorCount:      en.errors,
			LevelsCompleted: en.levels,
			IsCurrentPlayer: currentPlayerID != "" && en.playerID == currentPlayerID,
		}
		if i < n {
			top = append(top, row)
		}
		if row.IsCurrentPlayer {
			r := row
			current = &r
		}
	}
	return top, current
}

// wrapStore adds op context and guarantees the store-unavailable kind.
func wrapStore(op string, err error) error {
	if errors.Is(err, model.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return model.E(op, model.ErrStoreUnavailable, err)
}

func observe(kind string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = "error"
		metrics.RecordErrorByComponent("ranking", kind)
	}
	metrics.RecordRanking(kind, outcome, float64(time.Since(start).Microseconds())/1000)
}
