package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

// AuthDependencies defines the identity operations used by the handlers.
type AuthDependencies interface {
	Register(ctx context.Context, username, password string) (model.Player, auth.Tokens, error)
	Login(ctx context.Context, username, password string) (model.Player, auth.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	Me(ctx context.Context, playerID string) (model.Player, error)
}

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	deps   AuthDependencies
	secure bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AuthDependencies, secureCookies bool) *AuthHandler {
	return &AuthHandler{deps: deps, secure: secureCookies}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse carries the tokens in the body as well as in cookies so
// non-browser clients can use the Authorization header.
type authResponse struct {
	Msg          string        `json:"msg"`
	User         *model.Player `json:"user,omitempty"`
	AccessToken  string        `json:"accessToken,omitempty"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time    `json:"expiresAt,omitempty"`
}

func newAuthResponse(msg string, p *model.Player, t auth.Tokens) authResponse {
	return authResponse{
		Msg:          msg,
		User:         p,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    &t.AccessExpiresAt,
	}
}

func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errors.New("no data provided")
	}
	return req, nil
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register"
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, tokens, err := h.deps.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	h.setCookies(w, tokens)
	writeJSON(w, http.StatusCreated, newAuthResponse("User registered successfully", &p, tokens))
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, tokens, err := h.deps.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	h.setCookies(w, tokens)
	writeJSON(w, http.StatusOK, newAuthResponse("Login successful", &p, tokens))
}

// HandleLogout handles POST /auth/logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	const op = "api.logout"
	if err := h.deps.Logout(r.Context(), accessToken(r.Context())); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	h.clearCookies(w)
	writeJSON(w, http.StatusOK, authResponse{Msg: "Logout successful"})
}

// HandleRefresh handles POST /auth/refresh. The refresh token comes from
// the refresh cookie or a Bearer header.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"
	var token string
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	} else {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("refresh token required"))
		return
	}
	tokens, err := h.deps.Refresh(r.Context(), token)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	h.setCookies(w, tokens)
	writeJSON(w, http.StatusOK, newAuthResponse("Token refreshed", nil, tokens))
}

// HandleMe handles GET /users/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	const op = "api.me"
	p, err := h.deps.Me(r.Context(), PlayerID(r.Context()))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, t auth.Tokens) {
	http.SetCookie(w, h.cookie(accessCookie, t.AccessToken, t.AccessExpiresAt))
	if t.RefreshToken != "" {
		http.SetCookie(w, h.cookie(refreshCookie, t.RefreshToken, t.RefreshExpiresAt))
	}
}

func (h *AuthHandler) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *AuthHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
