package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserService handles registration, login and the profile page
type UserService struct {
	store        UserStore
	tokens       *auth.TokenManager
	defaultFunds decimal.Decimal
	logger       *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(store UserStore, tokens *auth.TokenManager, defaultFunds decimal.Decimal) *UserService {
	return &UserService{
		store:        store,
		tokens:       tokens,
		defaultFunds: defaultFunds,
		logger:       util.GetLogger(),
	}
}

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=150"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
}

// LoginRequest is the sign-in form
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a freshly issued token
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ProfileResponse is the caller's account with their orders
type ProfileResponse struct {
	User   *models.User `json:"user"`
	Orders []OrderView  `json:"orders"`
}

// Register creates a non-admin account funded with the default balance
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Funds:        s.defaultFunds,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

// Login verifies credentials and issues a token
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Info("Login failed", zap.String("username", req.Username))
		return nil, models.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, IsAdmin: user.IsAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Profile returns the caller and their orders, newest first
// IsAdmin reports whether userID currently holds admin rights. Tokens carry
// the flag from issue time, so admin tokens are checked against the store.
func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return false, models.ErrUnauthenticated
	}
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	return user.IsAdmin, nil
}

func (s *UserService) Profile(ctx context.Context, id auth.Identity) (*ProfileResponse, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, id.UserID)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	orders, err := s.store.GetOrdersByUserID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	return &ProfileResponse{User: user, Orders: newOrderViews(orders)}, nil
}
