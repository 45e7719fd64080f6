package service

import (
	"context"
	"errors"
	"strings"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/pkg/jwt"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// TokenIssuer signs and checks access tokens
type TokenIssuer interface {
	GenerateToken(userID, email string) (string, error)
	ValidateToken(token string) (*jwt.JWTClaims, error)
}

// UserService handles user-related operations
type UserService struct {
	db     *gorm.DB
	tokens TokenIssuer
	common Common
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, tokens TokenIssuer) *UserService {
	return NewUserServiceWithConfig(db, tokens, Common{})
}

// NewUserServiceWithConfig creates a new user service with custom collaborators
func NewUserServiceWithConfig(db *gorm.DB, tokens TokenIssuer, common Common) *UserService {
	return &UserService{db: db, tokens: tokens, common: common.withDefaults()}
}

// CreateUser creates a new user and returns it with an access token
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, "", err
	}
	if existing > 0 {
		return nil, "", ErrUserAlreadyExists
	}

	now := s.common.now()
	user := models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  req.Password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}

	s.common.Logger.Info("User created", "user_id", user.ID)
	return &user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	user.LastLogin = s.common.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", user.LastLogin).Error; err != nil {
		s.common.Logger.LogError(err, "Failed to record last login", "user_id", user.ID)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// Authenticate turns an access token into the identity it was issued for
func (s *UserService) Authenticate(token string) (Identity, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return Anonymous, err
	}
	return NewIdentity(claims.UserID), nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
