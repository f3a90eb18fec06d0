// Package auth is the identity provider: it registers players, checks
// passwords with bcrypt and issues opaque bearer tokens backed by the
// session store. Only a SHA-256 digest of each token is persisted.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

// Store is the persistence the identity provider needs.
type Store interface {
	CreatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	PlayerByID(ctx context.Context, id string) (model.Player, error)
	PlayerByName(ctx context.Context, name string) (model.Player, error)

	CreateSession(ctx context.Context, s model.Session) error
	SessionByToken(ctx context.Context, token string) (model.Session, error)
	RevokeSession(ctx context.Context, token string, at time.Time) error
	RevokePlayerSessions(ctx context.Context, playerID string, at time.Time) error
}

// Tokens is the credential pair handed to a client. RefreshToken is empty
// when only the access token was renewed.
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service implements register, login, logout, refresh and authenticate.
type Service struct {
	store      Store
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
	newToken   func() string
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
		newToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errCredentialsRequired = errors.New("username and password are required")

// Register creates a player and signs it in.
func (s *Service) Register(ctx context.Context, username, password string) (_ model.Player, _ Tokens, err error) {
	const op = "auth.Register"
	defer record("register", &err)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.Player{}, Tokens{}, model.E(op, model.ErrValidation, errCredentialsRequired)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		// Passwords over 72 bytes are the only input-driven failure.
		return model.Player{}, Tokens{}, model.E(op, model.ErrValidation, err)
	}

	p, err := s.store.CreatePlayer(ctx, model.Player{
		ID:           uuid.NewString(),
		DisplayName:  username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return model.Player{}, Tokens{}, model.E(op, model.ErrConflict, errors.New("username already exists"))
		}
		return model.Player{}, Tokens{}, err
	}

	tokens, err := s.issue(ctx, p.ID, true)
	if err != nil {
		return model.Player{}, Tokens{}, err
	}
	logger.Get().Info(ctx, "player registered", logger.String("player_id", p.ID))
	return p, tokens, nil
}

// Login checks credentials and issues a fresh access/refresh pair. Unknown
// users and wrong passwords fail identically with model.ErrUnauthenticated.
func (s *Service) Login(ctx context.Context, username, password string) (_ model.Player, _ Tokens, err error) {
	const op = "auth.Login"
	defer record("login", &err)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.Player{}, Tokens{}, model.E(op, model.ErrValidation, errCredentialsRequired)
	}

	p, err := s.store.PlayerByName(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Player{}, Tokens{}, model.E(op, model.ErrUnauthenticated, errors.New("invalid credentials"))
		}
		return model.Player{}, Tokens{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return model.Player{}, Tokens{}, model.E(op, model.ErrUnauthenticated, errors.New("invalid credentials"))
	}

	tokens, err := s.issue(ctx, p.ID, true)
	if err != nil {
		return model.Player{}, Tokens{}, err
	}
	return p, tokens, nil
}

// Logout revokes every session of the player owning accessToken.
func (s *Service) Logout(ctx context.Context, accessToken string) (err error) {
	const op = "auth.Logout"
	defer record("logout", &err)

	sess, err := s.session(ctx, op, accessToken, model.AccessToken)
	if err != nil {
		return err
	}
	if err := s.store.RevokePlayerSessions(ctx, sess.PlayerID, s.now().UTC()); err != nil {
		return err
	}
	return nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ Tokens, err error) {
	const op = "auth.Refresh"
	defer record("refresh", &err)

	sess, err := s.session(ctx, op, refreshToken, model.RefreshToken)
	if err != nil {
		return Tokens{}, err
	}
	return s.issue(ctx, sess.PlayerID, false)
}

// Authenticate resolves a live access token to its player id.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (_ string, err error) {
	defer record("authenticate", &err)

	sess, err := s.session(ctx, "auth.Authenticate", accessToken, model.AccessToken)
	if err != nil {
		return "", err
	}
	return sess.PlayerID, nil
}

// Me returns the player behind an authenticated id.
func (s *Service) Me(ctx context.Context, playerID string) (model.Player, error) {
	p, err := s.store.PlayerByID(ctx, playerID)
	if err != nil {
		return model.Player{}, err
	}
	return p, nil
}

// session looks up a token of the wanted kind and checks it is still active.
func (s *Service) session(ctx context.Context, op, token string, kind model.TokenKind) (model.Session, error) {
	if token == "" {
		return model.Session{}, model.E(op, model.ErrUnauthenticated, errors.New("missing token"))
	}
	sess, err := s.store.SessionByToken(ctx, digest(token))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Session{}, model.E(op, model.ErrUnauthenticated, errors.New("unknown token"))
		}
		return model.Session{}, err
	}
	if sess.Kind != kind {
		return model.Session{}, model.E(op, model.ErrUnauthenticated, errors.New("wrong token type"))
	}
	if !sess.Active(s.now()) {
		return model.Session{}, model.E(op, model.ErrUnauthenticated, errors.New("token expired or revoked"))
	}
	return sess, nil
}

func (s *Service) issue(ctx context.Context, playerID string, withRefresh bool) (Tokens, error) {
	now := s.now().UTC()
	var t Tokens

	t.AccessToken = s.newToken()
	t.AccessExpiresAt = now.Add(s.accessTTL)
	if err := s.store.CreateSession(ctx, model.Session{
		Token: digest(t.AccessToken), PlayerID: playerID, Kind: model.AccessToken,
		CreatedAt: now, ExpiresAt: t.AccessExpiresAt,
	}); err != nil {
		return Tokens{}, err
	}

	if withRefresh {
		t.RefreshToken = s.newToken()
		t.RefreshExpiresAt = now.Add(s.refreshTTL)
		if err := s.store.CreateSession(ctx, model.Session{
			Token: digest(t.RefreshToken), PlayerID: playerID, Kind: model.RefreshToken,
			CreatedAt: now, ExpiresAt: t.RefreshExpiresAt,
		}); err != nil {
			return Tokens{}, err
		}
	}
	return t, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func record(event string, errp *error) {
	outcome := "ok"
	switch err := *errp; {
	case err == nil:
	case errors.Is(err, model.ErrUnauthenticated):
		outcome = "denied"
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConflict):
		outcome = "rejected"
	default:
		outcome = "error"
		metrics.RecordErrorByComponent("auth", event)
	}
	metrics.RecordAuthEvent(event, outcome)
}
