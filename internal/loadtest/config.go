// Package loadtest seeds a running server with players and runs, then checks
// the rankings it serves against a reference computation.
package loadtest

import (
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Players       int           // Number of players to register
	RunsPerPlayer int           // Runs generated per player
	Levels        int           // Levels per difficulty
	LevelTop      int           // Server's per-level top size
	GlobalTop     int           // Server's global top size
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Sample        int           // Players whose views are verified
	Seed          uint64        // Generator seed; equal seeds give equal runs
	OutputFile    string        // Optional JSON dump of generated runs
	Verbose       bool          // Enable verbose logging
}

// Player is a registered test player with its access token.
type Player struct {
	ID       string `json:"uuid"`
	Username string `json:"username"`
	Token    string `json:"-"`
}

// GeneratedRun is one generated submission.
type GeneratedRun struct {
	PlayerIndex  int    `json:"-"`
	IDUser       string `json:"idUser"`
	Level        int    `json:"level"`
	Difficulty   string `json:"difficulty"`
	Time         int    `json:"time"`
	ErrorCount   int    `json:"errorCount"`
	SubmissionID string `json:"submissionId"`
}

func (r GeneratedRun) record() model.RunRecord {
	return model.RunRecord{
		PlayerID:       r.IDUser,
		Level:          r.Level,
		Difficulty:     model.Difficulty(r.Difficulty),
		ElapsedSeconds: r.Time,
		ErrorCount:     r.ErrorCount,
	}
}

// Stats holds run statistics.
type Stats struct {
	PlayersRegistered int
	RunsGenerated     int
	RunsSubmitted     int
	RunsAccepted      int
	RunsDuplicate     int
	RunsFailed        int
	ZeroTimeRuns      int
	ViewsChecked      int
	Mismatches        []string
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
