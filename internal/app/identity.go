package service

import (
	"context"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// Register creates a player and returns its first token pair.
func (s *Service) Register(ctx context.Context, username, password string) (model.Player, auth.Tokens, error) {
	c, err := s.snapshot()
	if err != nil {
		return model.Player{}, auth.Tokens{}, err
	}
	return c.auth.Register(ctx, username, password)
}

// Login checks credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, username, password string) (model.Player, auth.Tokens, error) {
	c, err := s.snapshot()
	if err != nil {
		return model.Player{}, auth.Tokens{}, err
	}
	return c.auth.Login(ctx, username, password)
}

func (s *Service) Logout(ctx context.Context, accessToken string) error {
	c, err := s.snapshot()
	if err != nil {
		return err
	}
	return c.auth.Logout(ctx, accessToken)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	c, err := s.snapshot()
	if err != nil {
		return auth.Tokens{}, err
	}
	return c.auth.Refresh(ctx, refreshToken)
}

// Authenticate resolves an access token to a player id.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (string, error) {
	c, err := s.snapshot()
	if err != nil {
		return "", err
	}
	return c.auth.Authenticate(ctx, accessToken)
}

func (s *Service) Me(ctx context.Context, playerID string) (model.Player, error) {
	c, err := s.snapshot()
	if err != nil {
		return model.Player{}, err
	}
	return c.auth.Me(ctx, playerID)
}

// ValidateSQL checks an exercise answer in the sandbox.
func (s *Service) ValidateSQL(ctx context.Context, exercise sandbox.Exercise, query string) (sandbox.Result, error) {
	c, err := s.snapshot()
	if err != nil {
		return sandbox.Result{}, err
	}
	return c.validator.Validate(ctx, exercise, query)
}
