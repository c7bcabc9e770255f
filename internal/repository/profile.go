package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recetas/recetas/internal/model"
)

// Common errors for profile repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailExists     = errors.New("email already exists")
)

// CreateProfile inserts the profile row for an identity. It plays the part
// of the hosted sign-up trigger in direct database mode.
func (r *Repository) CreateProfile(ctx context.Context, user *model.User) error {
	role := user.Role
	if role == "" {
		role = model.RoleUser
	}

	query := `
		INSERT INTO users (id, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, user.ID, user.Email, string(role)); err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateRole sets the role column of a profile.
func (r *Repository) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// GetProfile retrieves a profile by its ID.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT id, email, role, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	var role string
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	user.Role = model.Role(role)
	return &user, nil
}
