package secrets

import (
	"context"
	"errors"
)

// Well-known secret keys
const (
	KeyJWTSecret  = "jwt_secret"
	KeyDBPassword = "db_password"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// Overlay replaces the configured values of the well-known secrets with what
// the manager resolves, keeping the current value when nothing is found
func Overlay(ctx context.Context, m Manager, jwtSecret, dbPassword *string) {
	*jwtSecret = m.GetSecretWithDefault(ctx, KeyJWTSecret, *jwtSecret)
	*dbPassword = m.GetSecretWithDefault(ctx, KeyDBPassword, *dbPassword)
}
