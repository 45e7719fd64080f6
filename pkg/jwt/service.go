package jwt

import (
	"time"
)

// DefaultExpiry is used when no token lifetime is configured
const DefaultExpiry = 24 * time.Hour

// Service is a wrapper for JWT operations
type Service struct {
	secretKey string
	issuer    string
	expiry    time.Duration
	now       func() time.Time
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
		now:       time.Now,
	}
}

// WithIssuer sets the issuer written to and required from tokens
func (s *Service) WithIssuer(issuer string) *Service {
	s.issuer = issuer
	return s
}

// WithClock replaces the time source, used by tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Expiry returns the token lifetime
func (s *Service) Expiry() time.Duration {
	return s.expiry
}

// GenerateToken generates a JWT token for a user
func (s *Service) GenerateToken(userID, email string) (string, error) {
	return generateToken(s.secretKey, s.issuer, userID, email, s.now(), s.expiry)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return validateToken(s.secretKey, s.issuer, tokenString, s.now())
}
