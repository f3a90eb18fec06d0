package service

import (
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/repository"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/ranking"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The caller keeps ownership.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRankingOptions configures the ranking engine.
func WithRankingOptions(opts ...ranking.Option) Option {
	return func(s *Service) {
		s.rankingOpts = append(s.rankingOpts, opts...)
	}
}

// WithAuthOptions configures the identity provider.
func WithAuthOptions(opts ...auth.Option) Option {
	return func(s *Service) {
		s.authOpts = append(s.authOpts, opts...)
	}
}

// WithSandbox enables data exercises against exec.
func WithSandbox(exec sandbox.Executor, maxRows int) Option {
	return func(s *Service) {
		s.executor = exec
		if maxRows > 0 {
			s.sandboxMaxRows = maxRows
		}
	}
}
