package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// Generation shape.
const (
	zeroTimePercent = 5   // runs that report elapsed 0
	retryPercent    = 3   // runs re-sent with the same submission id
	maxElapsed      = 600 // seconds
	maxErrors       = 12
)

// generateRuns builds RunsPerPlayer runs for each player. Roughly half the
// players are steered towards finishing every level of some difficulty so
// that global rankings are populated. Retries are appended as copies that
// share the original submission id.
func generateRuns(cfg *Config, players []Player) []GeneratedRun {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	runs := make([]GeneratedRun, 0, len(players)*cfg.RunsPerPlayer)

	for i, p := range players {
		focus := model.Difficulties[rng.IntN(len(model.Difficulties))]
		completes := rng.IntN(2) == 0
		for n := range cfg.RunsPerPlayer {
			d := model.Difficulties[rng.IntN(len(model.Difficulties))]
			level := 1 + rng.IntN(cfg.Levels)
			if completes && n < cfg.Levels {
				d, level = focus, n+1
			}
			elapsed := 1 + rng.IntN(maxElapsed)
			if rng.IntN(100) < zeroTimePercent {
				elapsed = 0
			}
			runs = append(runs, GeneratedRun{
				PlayerIndex:  i,
				IDUser:       p.ID,
				Level:        level,
				Difficulty:   string(d),
				Time:         elapsed,
				ErrorCount:   rng.IntN(maxErrors + 1),
				SubmissionID: submissionID(rng),
			})
		}
	}

	retries := len(runs) * retryPercent / 100
	for range retries {
		runs = append(runs, runs[rng.IntN(len(runs))])
	}
	rng.Shuffle(len(runs), func(i, j int) { runs[i], runs[j] = runs[j], runs[i] })
	return runs
}

func submissionID(rng *rand.Rand) string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return fmt.Sprintf("%x", b)
	}
	return id.String()
}

// usernames returns n unique names for this seeding session.
func usernames(n int) []string {
	prefix := uuid.NewString()[:8]
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("load-%s-%04d", prefix, i)
	}
	return out
}
