package ranking

// Defaults for the game's leaderboard shape.
const (
	DefaultLevelTop            = 5
	DefaultGlobalTop           = 3
	DefaultLevelsPerDifficulty = 4
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLevelTop sets how many rows a per-level view shows.
func WithLevelTop(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.levelTop = n
		}
	}
}

// WithGlobalTop sets how many rows a global view shows.
func WithGlobalTop(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.globalTop = n
		}
	}
}

// WithLevelsPerDifficulty sets the completion threshold for the global ranking.
func WithLevelsPerDifficulty(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.levelsPerDifficulty = n
		}
	}
}
