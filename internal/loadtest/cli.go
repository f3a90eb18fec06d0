package loadtest

import (
	"fmt"
	"io"
	"os"

	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

// SetupLogging initialises the shared logger for the tool. A non-empty
// logFile receives JSON lines; otherwise pretty output goes to stderr. The
// returned func closes the log file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	opts := []logger.Option{logger.WithFormat(logger.FormatPretty), logger.WithOutput(os.Stderr)}
	done := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		opts = []logger.Option{logger.WithFormat(logger.FormatJSON), logger.WithOutput(f)}
		done = func() { _ = f.Close() }
	}
	if err := logger.Init(opts...); err != nil {
		done()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return done, nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `Unravel seed-runs
=================

Registers players, submits generated runs concurrently and checks that the
served rankings match a reference computed from the accepted runs. Point it
at a server with an empty store.

Usage:
  go run ./cmd/seed-runs [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -players int       Players to register (default 50)
  -runs int          Runs per player (default 12)
  -levels int        Levels per difficulty (default 4)
  -level-top int     Per-level top size served (default 5)
  -global-top int    Global top size served (default 3)
  -workers int       Concurrent workers (default CPU cores * 2)
  -sample int        Players whose views are verified (default 10)
  -seed uint         Generator seed (default 1)
  -timeout duration  HTTP request timeout (default 30s)
  -output string     Write generated runs as JSON
  -log string        Write JSON logs to a file instead of stderr
  -verbose           Enable debug logging and progress
  -help              Show this help message
`)
}
