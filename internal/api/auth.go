package api

import (
	"net/http"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/internal/service"
	"dungeon-ledger/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	service *service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Signup handles user registration
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, token, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromGin(c).Info("User signed up", "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromGin(c).Info("User logged in", "user_id", user.ID)
	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	id := identity(c)
	if !id.Authenticated() {
		fail(c, service.ErrNotAuthenticated)
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
