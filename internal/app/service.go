// Package service wires the stores, ranking engine, identity provider,
// sandbox and deduper into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/repository"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/dedupe"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/ranking"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the game backend.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	engine    *ranking.Engine
	auth      *auth.Service
	validator *sandbox.Validator
	deduper   dedupe.Deduper

	// Configuration
	dedupeSize     int
	rankingOpts    []ranking.Option
	authOpts       []auth.Option
	executor       sandbox.Executor
	sandboxMaxRows int

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dedupeSize:     100_000,
		sandboxMaxRows: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components. Without WithStore the service
// runs on a private in-memory store that Stop closes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory store")
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	s.engine = ranking.NewEngine(s.store, s.rankingOpts...)
	s.auth = auth.NewService(s.store, s.authOpts...)
	s.validator = sandbox.NewValidator(s.executor, s.sandboxMaxRows)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.started = true
	s.logger.Info(ctx, "game service started",
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("levelsPerDifficulty", s.engine.LevelsPerDifficulty()),
		logger.Bool("sandbox", s.executor != nil),
	)
	return nil
}

// Stop shuts the service down. A store passed with WithStore is left open
// for its owner to close.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.ownsStore {
		_ = s.store.Close()
		s.store = nil
		s.ownsStore = false
	}
	s.started = false
	s.logger.Info(context.Background(), "game service stopped")
}

// parts is the set of components one call works with.
type parts struct {
	store     repository.Store
	engine    *ranking.Engine
	auth      *auth.Service
	validator *sandbox.Validator
	deduper   dedupe.Deduper
	logger    logger.Logger
}

// snapshot captures the components under the read lock, so a call racing
// Stop keeps using the ones it started with.
func (s *Service) snapshot() (parts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return parts{}, ErrNotStarted
	}
	return parts{
		store:     s.store,
		engine:    s.engine,
		auth:      s.auth,
		validator: s.validator,
		deduper:   s.deduper,
		logger:    s.logger,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"dedupeSize": s.dedupeSize,
		"sandbox":    s.executor != nil,
	}
	if s.started {
		entries := s.deduper.Size()
		stats["dedupeEntries"] = entries
		metrics.UpdateDedupeEntries(entries)
		stats["levelsPerDifficulty"] = s.engine.LevelsPerDifficulty()
		stats["storeHealthy"] = s.store.Ping(context.Background()) == nil
	}
	return stats
}
