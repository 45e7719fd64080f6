package api

import (
	"errors"
	"strconv"

	"dungeon-ledger/backend/internal/service"
	apperrors "dungeon-ledger/backend/pkg/errors"
	"dungeon-ledger/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// fail attaches the HTTP form of err for errors.ErrorHandler to render
func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
}

func toAppError(err error) *apperrors.AppError {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return apperrors.BadRequestWithDetails("VALIDATION_FAILED", ve.Error(), gin.H{"field": ve.Field})
	case errors.Is(err, service.ErrNotAuthenticated):
		return apperrors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required")
	case errors.Is(err, service.ErrNotFound):
		return apperrors.NewNotFoundError("NOT_FOUND", "Resource not found")
	case errors.Is(err, service.ErrTooManyJoinAttempts):
		return apperrors.NewTooManyRequestsError("TOO_MANY_ATTEMPTS", "Too many failed join attempts, try again later")
	case errors.Is(err, service.ErrUserAlreadyExists):
		return apperrors.NewConflictError("USER_EXISTS", "A user with this email already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFoundError("USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrJoinCodeExhausted):
		return apperrors.NewInternalServerError("JOIN_CODE_EXHAUSTED", "Could not generate a join code, try again").WithCause(err)
	}
	return apperrors.FromError(err)
}

// badRequest reports a body that could not be bound
func badRequest(c *gin.Context, err error) {
	_ = c.Error(apperrors.BadRequestWithDetails("INVALID_REQUEST", "Invalid request format", err.Error()))
}

// identity returns the caller resolved by the auth middleware
func identity(c *gin.Context) service.Identity {
	return service.NewIdentity(middleware.UserID(c))
}

// pathID parses a positive numeric path parameter. Malformed ids cannot name
// any record, so they are reported as not found.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, service.ErrNotFound)
		return 0, false
	}
	return uint(id), true
}
