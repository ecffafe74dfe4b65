package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

const userColumns = "id, username, password_hash, funds, is_admin, created_at"

// CreateUser inserts a user and fills in the generated fields
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, funds, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		user.Username, user.PasswordHash, user.Funds, user.IsAdmin).
		Scan(&user.ID, &user.CreatedAt)
	if isPQCode(err, pqUniqueViolation) {
		return models.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	if err != nil {
		return nil, notFound(err, models.ErrUserNotFound)
	}
	return &user, nil
}
