package service

import (
	"context"
	"testing"
	"time"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserServiceWithConfig(newTestDB(t), jwt.NewService("test-secret", time.Hour), Common{Now: newStepClock().Now})
}

func TestUserSignupLoginAuthenticate(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, token, err := svc.CreateUser(ctx, &models.CreateUserRequest{Name: "Alice", Email: " Alice@Example.com ", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password123", user.Password)

	id, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)

	_, _, err = svc.CreateUser(ctx, &models.CreateUserRequest{Name: "Again", Email: "alice@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	loggedIn, token, err := svc.Login(ctx, &models.LoginRequest{Email: "ALICE@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.False(t, loggedIn.LastLogin.IsZero())
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	found, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Name)
	_, err = svc.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserAuthenticateRejectsGarbage(t *testing.T) {
	svc := newUserService(t)
	id, err := svc.Authenticate("not-a-token")
	assert.Error(t, err)
	assert.False(t, id.Authenticated())
}
