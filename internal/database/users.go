// users.go handles user-related database operations.
package database

import (
	"context"
	"fmt"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// CreateUser inserts a new user record. A duplicate email yields ErrConflict.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = newID()
	u.CreatedAt = now()

	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO users (id, email, password_hash, name, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.PasswordHash, u.Name, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, db.Rebind(`SELECT * FROM users WHERE email = ?`), email)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, db.Rebind(`SELECT * FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}
