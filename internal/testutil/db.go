package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// NewDB opens a migrated SQLite database in a temp dir and closes it when
// the test ends.
func NewDB(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.New(database.DriverSQLite, filepath.Join(t.TempDir(), "docvault.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.RunMigrations(nil); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// NewUser inserts a user with the given email.
func NewUser(t testing.TB, db *database.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Name: email}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}
