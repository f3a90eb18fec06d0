package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

type submitOutcome int

const (
	outcomeAccepted submitOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

// registerPlayers registers cfg.Players players concurrently.
func registerPlayers(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) ([]Player, error) {
	names := usernames(cfg.Players)
	players := make([]Player, len(names))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, cfg.Workers)
	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			p, err := client.register(ctx, name, "load-"+name)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			players[i] = p
		}(i, name)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, fmt.Errorf("register players: %w", firstErr)
	}
	stats.PlayersRegistered = len(players)
	return players, nil
}

// submitRuns posts runs with a worker pool and returns the runs the server
// stored. Duplicates and failures are counted but not returned.
func submitRuns(ctx context.Context, cfg *Config, client *HTTPClient, players []Player, runs []GeneratedRun, stats *Stats) []GeneratedRun {
	log := logger.Get()
	log.Info(ctx, "submitting runs", logger.Int("runs", len(runs)), logger.Int("workers", cfg.Workers))

	var (
		accepted, duplicate, failed, submitted int64

		mu     sync.Mutex
		stored = make([]GeneratedRun, 0, len(runs))
	)

	lastReport := time.Now()
	var reportMu sync.Mutex

	runCh := make(chan GeneratedRun, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range runCh {
				outcome := submitRun(ctx, client, players[run.PlayerIndex].Token, run)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
					mu.Lock()
					stored = append(stored, run)
					mu.Unlock()
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				if cfg.Verbose {
					reportMu.Lock()
					if time.Since(lastReport) >= time.Second {
						lastReport = time.Now()
						log.Info(ctx, "progress",
							logger.Int("submitted", int(atomic.LoadInt64(&submitted))),
							logger.Int("total", len(runs)))
					}
					reportMu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(runCh)
		for _, run := range runs {
			select {
			case <-ctx.Done():
				return
			case runCh <- run:
			}
		}
	}()
	wg.Wait()

	stats.RunsSubmitted = int(submitted)
	stats.RunsAccepted = int(accepted)
	stats.RunsDuplicate = int(duplicate)
	stats.RunsFailed = int(failed)
	for _, r := range stored {
		if r.Time == 0 {
			stats.ZeroTimeRuns++
		}
	}
	return stored
}

func submitRun(ctx context.Context, client *HTTPClient, token string, run GeneratedRun) submitOutcome {
	status, err := client.do(ctx, http.MethodPost, "/records", token, run, nil)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusCreated:
		return outcomeAccepted
	case status == http.StatusOK:
		return outcomeDuplicate
	default:
		return outcomeFailed
	}
}
