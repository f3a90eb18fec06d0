package api

import (
	"time"

	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

const defaultRequestTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origin allow-list.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRequestTimeout bounds each request's context. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.requestTimeout = d
		}
	}
}

// WithSecureCookies marks token cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) {
		s.cookieSecure = secure
	}
}

// WithLogger sets the logger used by the middleware.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}
