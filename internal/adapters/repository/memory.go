package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// MemoryStore is the in-process Store. Every read recomputes from the run log
// under a read lock, so rankings always reflect every completed Append.
type MemoryStore struct {
	opts options

	mu       sync.RWMutex
	closed   bool
	runs     []model.RunRecord
	players  map[string]model.Player
	byName   map[string]string
	sessions map[string]model.Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:     o,
		players:  make(map[string]model.Player),
		byName:   make(map[string]string),
		sessions: make(map[string]model.Session),
	}
}

// Append implements RunStore.
func (s *MemoryStore) Append(_ context.Context, rec model.RunRecord) (_ model.RunRecord, err error) {
	const op = "repository.Append"
	defer observe(driverMemory, "append")(&err)

	if cerr := rec.Check(); cerr != nil {
		return model.RunRecord{}, model.E(op, model.ErrValidation, cerr)
	}
	if rec.ID == "" {
		rec.ID = s.opts.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.opts.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.RunRecord{}, model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	s.runs = append(s.runs, rec)
	return rec, nil
}

type bestKey struct {
	playerID string
	level    int
}

// BestPerPlayer implements RunStore.
func (s *MemoryStore) BestPerPlayer(_ context.Context, difficulty model.Difficulty, level int) (_ []model.BestRun, err error) {
	defer observe(driverMemory, "best_per_player")(&err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, model.E("repository.BestPerPlayer", model.ErrStoreUnavailable, ErrClosed)
	}
	return s.reduce(func(r model.RunRecord) bool {
		return r.Difficulty == difficulty && r.Level == level
	}), nil
}

// BestPerPlayerPerLevel implements RunStore.
func (s *MemoryStore) BestPerPlayerPerLevel(_ context.Context, difficulty model.Difficulty) (_ []model.BestRun, err error) {
	defer observe(driverMemory, "best_per_player_per_level")(&err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, model.E("repository.BestPerPlayerPerLevel", model.ErrStoreUnavailable, ErrClosed)
	}
	return s.reduce(func(r model.RunRecord) bool {
		return r.Difficulty == difficulty
	}), nil
}

// reduce groups matching completed runs by (player, level). Caller holds mu.
func (s *MemoryStore) reduce(match func(model.RunRecord) bool) []model.BestRun {
	groups := make(map[bestKey]*model.BestRun)
	for _, r := range s.runs {
		if r.ElapsedSeconds <= 0 || !match(r) {
			continue
		}
		k := bestKey{playerID: r.PlayerID, level: r.Level}
		b, ok := groups[k]
		if !ok {
			groups[k] = &model.BestRun{PlayerID: r.PlayerID, Level: r.Level, BestTime: r.ElapsedSeconds, BestErrors: r.ErrorCount}
			continue
		}
		b.BestTime = min(b.BestTime, r.ElapsedSeconds)
		b.BestErrors = min(b.BestErrors, r.ErrorCount)
	}

	out := make([]model.BestRun, 0, len(groups))
	for _, b := range groups {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayerID != out[j].PlayerID {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].Level < out[j].Level
	})
	return out
}

// Runs returns a copy of the run log, oldest first.
func (s *MemoryStore) Runs() []model.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RunRecord, len(s.runs))
	copy(out, s.runs)
	return out
}

// CreatePlayer implements PlayerStore.
func (s *MemoryStore) CreatePlayer(_ context.Context, p model.Player) (_ model.Player, err error) {
	const op = "repository.CreatePlayer"
	defer observe(driverMemory, "create_player")(&err)

	if p.ID == "" {
		p.ID = s.opts.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.opts.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Player{}, model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	if _, taken := s.byName[p.DisplayName]; taken {
		return model.Player{}, model.E(op, model.ErrConflict, nil)
	}
	if _, taken := s.players[p.ID]; taken {
		return model.Player{}, model.E(op, model.ErrConflict, nil)
	}
	s.players[p.ID] = p
	s.byName[p.DisplayName] = p.ID
	return p, nil
}

// PlayerByID implements PlayerStore.
func (s *MemoryStore) PlayerByID(_ context.Context, id string) (_ model.Player, err error) {
	const op = "repository.PlayerByID"
	defer observe(driverMemory, "player_by_id")(&err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Player{}, model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, model.E(op, model.ErrNotFound, nil)
	}
	return p, nil
}

// PlayerByName implements PlayerStore.
func (s *MemoryStore) PlayerByName(_ context.Context, name string) (_ model.Player, err error) {
	const op = "repository.PlayerByName"
	defer observe(driverMemory, "player_by_name")(&err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Player{}, model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	id, ok := s.byName[name]
	if !ok {
		return model.Player{}, model.E(op, model.ErrNotFound, nil)
	}
	return s.players[id], nil
}

// DisplayNames implements PlayerStore.
func (s *MemoryStore) DisplayNames(_ context.Context, ids []string) (_ map[string]string, err error) {
	defer observe(driverMemory, "display_names")(&err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, model.E("repository.DisplayNames", model.ErrStoreUnavailable, ErrClosed)
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out[id] = p.DisplayName
		}
	}
	return out, nil
}

// CreateSession implements SessionStore.
func (s *MemoryStore) CreateSession(_ context.Context, sess model.Session) (err error) {
	const op = "repository.CreateSession"
	defer observe(driverMemory, "create_session")(&err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	if _, taken := s.sessions[sess.Token]; taken {
		return model.E(op, model.ErrConflict, nil)
	}
	s.sessions[sess.Token] = sess
	return nil
}

// SessionByToken implements SessionStore.
func (s *MemoryStore) SessionByToken(_ context.Context, token string) (_ model.Session, err error) {
	const op = "repository.SessionByToken"
	defer observe(driverMemory, "session_by_token")(&err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Session{}, model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	sess, ok := s.sessions[token]
	if !ok {
		return model.Session{}, model.E(op, model.ErrNotFound, nil)
	}
	return sess, nil
}

// RevokeSession implements SessionStore. Revoking twice keeps the first timestamp.
func (s *MemoryStore) RevokeSession(_ context.Context, token string, at time.Time) (err error) {
	const op = "repository.RevokeSession"
	defer observe(driverMemory, "revoke_session")(&err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.E(op, model.ErrStoreUnavailable, ErrClosed)
	}
	sess, ok := s.sessions[token]
	if !ok {
		return model.E(op, model.ErrNotFound, nil)
	}
	if sess.RevokedAt == nil {
		sess.RevokedAt = &at
		s.sessions[token] = sess
	}
	return nil
}

// RevokePlayerSessions implements SessionStore.
func (s *MemoryStore) RevokePlayerSessions(_ context.Context, playerID string, at time.Time) (err error) {
	defer observe(driverMemory, "revoke_player_sessions")(&err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.E("repository.RevokePlayerSessions", model.ErrStoreUnavailable, ErrClosed)
	}
	for token, sess := range s.sessions {
		if sess.PlayerID == playerID && sess.RevokedAt == nil {
			sess.RevokedAt = &at
			s.sessions[token] = sess
		}
	}
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.E("repository.Ping", model.ErrStoreUnavailable, ErrClosed)
	}
	return nil
}

// Close marks the store unusable. Subsequent calls fail with model.ErrStoreUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
