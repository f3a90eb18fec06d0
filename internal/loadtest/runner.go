package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrMismatch is returned by Run when served rankings differ from the reference.
var ErrMismatch = errors.New("rankings differ from reference")

// Run seeds the server and verifies its rankings. The summary goes to out.
// Rankings are compared against runs submitted in this session only, so
// the server should start empty.
func Run(ctx context.Context, cfg *Config, out io.Writer) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("runsPerPlayer", cfg.RunsPerPlayer),
		logger.Int("workers", cfg.Workers),
		logger.Int("sample", cfg.Sample),
		logger.Any("seed", cfg.Seed))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Register players
	players, err := registerPlayers(ctx, cfg, client, stats)
	if err != nil {
		return stats, err
	}

	// Step 3: Generate and submit runs
	runs := generateRuns(cfg, players)
	stats.RunsGenerated = len(runs)
	stored := submitRuns(ctx, cfg, client, players, runs, stats)

	// Step 4: Compare served rankings with the reference
	if err := verifyRankings(ctx, cfg, client, players, stored, stats); err != nil {
		return stats, fmt.Errorf("ranking verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveRuns(cfg.OutputFile, runs); err != nil {
			log.Warn(ctx, "failed to save runs to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	printSummary(out, stats)

	if len(stats.Mismatches) > 0 {
		return stats, fmt.Errorf("%w: %d views", ErrMismatch, len(stats.Mismatches))
	}
	log.Info(ctx, "seed run completed")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, err := client.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", status)
	}
	return nil
}

// saveRuns writes the generated runs as a JSON array.
func saveRuns(filename string, runs []GeneratedRun) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}
