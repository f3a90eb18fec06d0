package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/ranking"
	"github.com/gaeliam100/unravel-sql-game-back/internal/loadtest"
)

// Default configuration constants.
const (
	defaultPlayers       = 50
	defaultRunsPerPlayer = 12
	defaultSample        = 10
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players    = flag.Int("players", defaultPlayers, "Players to register")
		runs       = flag.Int("runs", defaultRunsPerPlayer, "Runs per player")
		levels     = flag.Int("levels", ranking.DefaultLevelsPerDifficulty, "Levels per difficulty")
		levelTop   = flag.Int("level-top", ranking.DefaultLevelTop, "Per-level top size served")
		globalTop  = flag.Int("global-top", ranking.DefaultGlobalTop, "Global top size served")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		sample     = flag.Int("sample", defaultSample, "Players whose views are verified")
		seed       = flag.Uint64("seed", 1, "Generator seed")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write generated runs as JSON")
		logFile    = flag.String("log", "", "Write JSON logs to a file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logging:", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:       *baseURL,
		Players:       *players,
		RunsPerPlayer: *runs,
		Levels:        *levels,
		LevelTop:      *levelTop,
		GlobalTop:     *globalTop,
		Workers:       max(*workers, 1),
		Timeout:       *timeout,
		Sample:        *sample,
		Seed:          *seed,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}
	if _, err := loadtest.Run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "seed run failed:", err)
		cancel()
		closeLog()
		os.Exit(1)
	}
}
