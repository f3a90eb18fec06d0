package model

// RankingRow is one derived leaderboard line. For global rankings Time and
// ErrorCount hold the per-player totals.
type RankingRow struct {
	Rank            int    `json:"position"`
	PlayerID        string `json:"-"`
	DisplayName     string `json:"username"`
	Time            int    `json:"time"`
	ErrorCount      int    `json:"errorCount"`
	LevelsCompleted int    `json:"levelsCompleted,omitempty"`
	IsCurrentPlayer bool   `json:"isCurrentUser"`
}

// LevelRankingView is the per-level leaderboard returned to clients.
type LevelRankingView struct {
	Level            int          `json:"level"`
	Difficulty       Difficulty   `json:"difficulty"`
	Top              []RankingRow `json:"top5"`
	CurrentPlayerRow *RankingRow  `json:"currentUser"`
	TotalPlayers     int          `json:"totalPlayers"`
}

// GlobalRankingView is the cross-level leaderboard for one difficulty.
type GlobalRankingView struct {
	Difficulty       Difficulty   `json:"difficulty"`
	Top              []RankingRow `json:"top3"`
	CurrentPlayerRow *RankingRow  `json:"currentUser"`
	TotalPlayers     int          `json:"totalPlayers"`
}
