package auth

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Default session lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTokenTTL sets access and refresh token lifetimes.
func WithTokenTTL(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenGenerator overrides the bearer token generator (tests).
func WithTokenGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newToken = gen
		}
	}
}
