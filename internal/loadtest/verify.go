package loadtest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/repository"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/ranking"
)

// referenceEngine replays the stored runs into an in-memory store and
// returns a ranking engine over it.
func referenceEngine(ctx context.Context, cfg *Config, players []Player, stored []GeneratedRun) (*ranking.Engine, error) {
	store := repository.NewMemoryStore()
	for _, p := range players {
		if _, err := store.CreatePlayer(ctx, model.Player{ID: p.ID, DisplayName: p.Username}); err != nil {
			return nil, fmt.Errorf("replay player %s: %w", p.Username, err)
		}
	}
	for _, r := range stored {
		if _, err := store.Append(ctx, r.record()); err != nil {
			return nil, fmt.Errorf("replay run: %w", err)
		}
	}
	return ranking.NewEngine(store,
		ranking.WithLevelsPerDifficulty(cfg.Levels),
		ranking.WithLevelTop(cfg.LevelTop),
		ranking.WithGlobalTop(cfg.GlobalTop),
	), nil
}

// verifyRankings fetches every level and global view for a sample of
// players and compares them with the reference engine.
func verifyRankings(ctx context.Context, cfg *Config, client *HTTPClient, players []Player, stored []GeneratedRun, stats *Stats) error {
	engine, err := referenceEngine(ctx, cfg, players, stored)
	if err != nil {
		return err
	}

	sample := min(cfg.Sample, len(players))
	for _, p := range players[:sample] {
		for _, d := range model.Difficulties {
			for level := 1; level <= cfg.Levels; level++ {
				var got model.LevelRankingView
				path := fmt.Sprintf("/ranking/%s/%d", d, level)
				if status, err := client.do(ctx, http.MethodGet, path, p.Token, nil, &got); err != nil || status != http.StatusOK {
					return fmt.Errorf("GET %s: status %d: %v", path, status, err)
				}
				want, err := engine.ComputeLevelRanking(ctx, d, level, p.ID)
				if err != nil {
					return fmt.Errorf("reference %s: %w", path, err)
				}
				stats.ViewsChecked++
				stats.Mismatches = append(stats.Mismatches,
					compareViews(path, p.Username, want.Top, got.Top, want.CurrentPlayerRow, got.CurrentPlayerRow, want.TotalPlayers, got.TotalPlayers)...)
			}

			var got model.GlobalRankingView
			path := fmt.Sprintf("/ranking/%s", d)
			if status, err := client.do(ctx, http.MethodGet, path, p.Token, nil, &got); err != nil || status != http.StatusOK {
				return fmt.Errorf("GET %s: status %d: %v", path, status, err)
			}
			want, err := engine.ComputeGlobalRanking(ctx, d, p.ID)
			if err != nil {
				return fmt.Errorf("reference %s: %w", path, err)
			}
			stats.ViewsChecked++
			stats.Mismatches = append(stats.Mismatches,
				compareViews(path, p.Username, want.Top, got.Top, want.CurrentPlayerRow, got.CurrentPlayerRow, want.TotalPlayers, got.TotalPlayers)...)
		}
	}
	return nil
}

func compareViews(path, viewer string, wantTop, gotTop []model.RankingRow, wantCur, gotCur *model.RankingRow, wantTotal, gotTotal int) []string {
	var out []string
	if wantTotal != gotTotal {
		out = append(out, fmt.Sprintf("%s (%s): totalPlayers want %d got %d", path, viewer, wantTotal, gotTotal))
	}
	if len(wantTop) != len(gotTop) {
		return append(out, fmt.Sprintf("%s (%s): top size want %d got %d", path, viewer, len(wantTop), len(gotTop)))
	}
	for i := range wantTop {
		if !sameRow(wantTop[i], gotTop[i]) {
			out = append(out, fmt.Sprintf("%s (%s): row %d want %+v got %+v", path, viewer, i, wantTop[i], gotTop[i]))
		}
	}
	switch {
	case wantCur == nil && gotCur == nil:
	case wantCur == nil || gotCur == nil:
		out = append(out, fmt.Sprintf("%s (%s): currentUser presence differs", path, viewer))
	case !sameRow(*wantCur, *gotCur):
		out = append(out, fmt.Sprintf("%s (%s): currentUser want %+v got %+v", path, viewer, *wantCur, *gotCur))
	}
	return out
}

// sameRow compares the fields that travel over the wire.
func sameRow(a, b model.RankingRow) bool {
	return a.Rank == b.Rank &&
		a.DisplayName == b.DisplayName &&
		a.Time == b.Time &&
		a.ErrorCount == b.ErrorCount &&
		a.LevelsCompleted == b.LevelsCompleted &&
		a.IsCurrentPlayer == b.IsCurrentPlayer
}
