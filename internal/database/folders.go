// folders.go handles folder and tag CRUD. Every query is scoped by owner_id,
// so another owner's row is indistinguishable from a missing one.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// --- Folder Operations ---

// CreateFolder inserts a folder for f.OwnerID.
func (db *DB) CreateFolder(ctx context.Context, f *models.Folder) error {
	f.ID = newID()
	f.CreatedAt = now()
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO folders (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`),
		f.ID, f.OwnerID, f.Name, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// ListFolders returns the owner's folders, newest first.
func (db *DB) ListFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	var folders []models.Folder
	err := db.SelectContext(ctx, &folders, db.Rebind(`
		SELECT * FROM folders WHERE owner_id = ? ORDER BY created_at DESC, id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// GetFolder returns one of the owner's folders.
func (db *DB) GetFolder(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	var f models.Folder
	err := db.GetContext(ctx, &f, db.Rebind(`
		SELECT * FROM folders WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, notFound(err, "folder")
	}
	return &f, nil
}

// RenameFolder changes a folder's name.
func (db *DB) RenameFolder(ctx context.Context, ownerID, id, name string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE folders SET name = ? WHERE id = ? AND owner_id = ?`), name, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	return expectOne(res, "folder")
}

// DeleteFolder removes a folder; its documents are detached, not deleted.
func (db *DB) DeleteFolder(ctx context.Context, ownerID, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		DELETE FROM folders WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return expectOne(res, "folder")
}

// --- Tag Operations ---

// CreateTag inserts a tag. Tag names are unique per owner (ErrConflict).
func (db *DB) CreateTag(ctx context.Context, t *models.Tag) error {
	t.ID = newID()
	t.CreatedAt = now()
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO tags (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`),
		t.ID, t.OwnerID, t.Name, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tag %q: %w", t.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// ListTags returns the owner's tags ordered by name.
func (db *DB) ListTags(ctx context.Context, ownerID string) ([]models.Tag, error) {
	var tags []models.Tag
	err := db.SelectContext(ctx, &tags, db.Rebind(`
		SELECT * FROM tags WHERE owner_id = ? ORDER BY name, id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// GetTag returns one of the owner's tags.
func (db *DB) GetTag(ctx context.Context, ownerID, id string) (*models.Tag, error) {
	var t models.Tag
	err := db.GetContext(ctx, &t, db.Rebind(`
		SELECT * FROM tags WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, notFound(err, "tag")
	}
	return &t, nil
}

// RenameTag changes a tag's name, keeping per-owner uniqueness.
func (db *DB) RenameTag(ctx context.Context, ownerID, id, name string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE tags SET name = ? WHERE id = ? AND owner_id = ?`), name, id, ownerID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tag %q: %w", name, ErrConflict)
		}
		return fmt.Errorf("failed to rename tag: %w", err)
	}
	return expectOne(res, "tag")
}

// DeleteTag removes a tag and its document links.
func (db *DB) DeleteTag(ctx context.Context, ownerID, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		DELETE FROM tags WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return expectOne(res, "tag")
}

// CountOwnedTags returns how many of ids belong to ownerID. Handlers use it
// to reject tag lists that reference someone else's tags.
func (db *DB) CountOwnedTags(ctx context.Context, ownerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(DISTINCT id) FROM tags WHERE owner_id = ? AND id IN (?)`, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build tag query: %w", err)
	}
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count tags: %w", err)
	}
	return n, nil
}
