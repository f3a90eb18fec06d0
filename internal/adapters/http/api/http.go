// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	service "github.com/gaeliam100/unravel-sql-game-back/internal/app"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmitRun(ctx context.Context, authPlayerID string, sub model.RunSubmission) (service.SubmitResult, error)
	LevelRanking(ctx context.Context, difficulty string, level int, playerID string) (model.LevelRankingView, error)
	GlobalRanking(ctx context.Context, difficulty string, playerID string) (model.GlobalRankingView, error)

	Register(ctx context.Context, username, password string) (model.Player, auth.Tokens, error)
	Login(ctx context.Context, username, password string) (model.Player, auth.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
	Me(ctx context.Context, playerID string) (model.Player, error)

	ValidateSQL(ctx context.Context, exercise sandbox.Exercise, query string) (sandbox.Result, error)
}

// Server wires HTTP routes for the game API.
type Server struct {
	deps Dependencies

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	recordsHandler *RecordsHandler
	rankingHandler *RankingHandler
	authHandler    *AuthHandler
	sandboxHandler *SandboxHandler

	allowedOrigins []string
	requestTimeout time.Duration
	cookieSecure   bool
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.recordsHandler = NewRecordsHandler(deps)
	s.rankingHandler = NewRankingHandler(deps)
	s.authHandler = NewAuthHandler(deps, s.cookieSecure)
	s.sandboxHandler = NewSandboxHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Use(MetricsMiddleware, s.timeoutMiddleware)

	// Operational endpoints
	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet)

	// Public endpoints
	r.HandleFunc("/auth/register", s.authHandler.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.authHandler.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", s.authHandler.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/validate-sql", s.sandboxHandler.HandleValidate).Methods(http.MethodPost)

	// Authenticated endpoints
	authed := r.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/auth/logout", s.authHandler.HandleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/users/me", s.authHandler.HandleMe).Methods(http.MethodGet)
	authed.HandleFunc("/records", s.recordsHandler.HandleCreate).Methods(http.MethodPost)
	authed.HandleFunc("/create-record", s.recordsHandler.HandleCreate).Methods(http.MethodPost)
	authed.HandleFunc("/ranking/{difficulty}/{level}", s.rankingHandler.HandleLevel).Methods(http.MethodGet)
	authed.HandleFunc("/ranking/{difficulty}", s.rankingHandler.HandleGlobal).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		color.Yellow("[404] %s %s", req.Method, req.URL.Path)
		writeError(w, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
}

// Handler returns r wrapped with the CORS policy. Credentials are allowed
// so browsers send the token cookies.
func (s *Server) Handler(r *mux.Router) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(r)
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an error kind onto a status code. Server-side failures
// are logged and answered with a generic message.
func writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, cause(err))
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// cause strips the op and kind prefixes so clients see only the reason.
func cause(err error) error {
	var e *model.Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Err == nil {
		return e.Kind
	}
	return cause(e.Err)
}
