package middleware

import (
	"strings"

	"dungeon-ledger/backend/pkg/errors"
	"dungeon-ledger/backend/pkg/jwt"
	"dungeon-ledger/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the validated *jwt.JWTClaims
const ClaimsKey = "claims"

// TokenValidator checks an access token
type TokenValidator interface {
	ValidateToken(token string) (*jwt.JWTClaims, error)
}

// JWTAuth checks that the request has a valid JWT and stores the user id in the context.
// The token is read from the Authorization header, or from the token query parameter
// because browsers cannot set headers on websocket upgrades.
func JWTAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			_ = c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			logger.FromGin(c).Debug("Invalid JWT token", "error", err.Error())
			_ = c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(logger.ContextKeyUserID, claims.UserID)
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return header
	}
	return strings.TrimSpace(c.Query("token"))
}

// UserID returns the authenticated user id set by JWTAuth, or ""
func UserID(c *gin.Context) string {
	return c.GetString(logger.ContextKeyUserID)
}
