// documents.go handles document persistence and the list/filter query layer.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// CreateDocument inserts a freshly uploaded document and links its tags in
// one transaction. Extracted fields start empty and is_processed false.
func (db *DB) CreateDocument(ctx context.Context, d *models.Document, tagIDs []string) error {
	d.ID = newID()
	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	d.IsProcessed = false

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO documents (id, owner_id, folder_id, file_key, original_filename, file_size,
			title, author, page_count, md5, content_text, is_processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', '', NULL, '', '', ?, ?, ?)`),
		d.ID, d.OwnerID, d.FolderID, d.FileKey, d.OriginalFilename, d.FileSize,
		false, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	if err := replaceTags(ctx, tx, d.ID, tagIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDocument retrieves a document by ID regardless of owner. Only internal
// callers (the extraction runner) use it; handlers use GetDocumentForOwner.
func (db *DB) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := db.GetContext(ctx, &d, db.Rebind(`SELECT * FROM documents WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return &d, nil
}

// GetDocumentForOwner retrieves one of the owner's documents with folder and tags loaded.
func (db *DB) GetDocumentForOwner(ctx context.Context, ownerID, id string) (*models.Document, error) {
	var d models.Document
	err := db.GetContext(ctx, &d, db.Rebind(`
		SELECT * FROM documents WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, notFound(err, "document")
	}
	docs := []models.Document{d}
	if err := db.LoadDocumentRelations(ctx, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

// GetDocumentsByIDs returns the owner's documents among ids, with relations,
// in the order of ids. Unknown or foreign ids are skipped.
func (db *DB) GetDocumentsByIDs(ctx context.Context, ownerID string, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM documents WHERE owner_id = ? AND id IN (?)`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build document query: %w", err)
	}
	var found []models.Document
	if err := db.SelectContext(ctx, &found, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if err := db.LoadDocumentRelations(ctx, found); err != nil {
		return nil, err
	}

	byID := make(map[string]models.Document, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	ordered := make([]models.Document, 0, len(found))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// documentOrderings whitelists ORDER BY columns to prevent SQL injection.
var documentOrderings = map[string]string{
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
	"title":       "title ASC",
	"-title":      "title DESC",
	"page_count":  "page_count ASC",
	"-page_count": "page_count DESC",
}

// ListDocuments returns a page of the owner's documents matching params,
// plus the total number of matches.
func (db *DB) ListDocuments(ctx context.Context, params models.DocumentListParams) ([]models.Document, int, error) {
	_, perPage, offset := PageBounds(params.Page, params.PerPage)

	conditions := []string{"owner_id = ?"}
	args := []interface{}{params.OwnerID}

	if q := strings.TrimSpace(params.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		conditions = append(conditions,
			`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(original_filename) LIKE ? ESCAPE '\' OR LOWER(content_text) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if tags := nonEmpty(params.Tags); len(tags) > 0 {
		conditions = append(conditions, `id IN (
			SELECT dt.document_id FROM document_tags dt
			JOIN tags t ON t.id = dt.tag_id
			WHERE t.owner_id = ? AND t.name IN (?))`)
		args = append(args, params.OwnerID, tags)
	}

	if params.FolderID != "" {
		conditions = append(conditions, "folder_id = ?")
		args = append(args, params.FolderID)
	}

	if params.Processed != nil {
		conditions = append(conditions, "is_processed = ?")
		args = append(args, *params.Processed)
	}

	if params.CreatedAfter != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, startOfDay(*params.CreatedAfter))
	}

	if params.CreatedBefore != nil {
		// Inclusive of the whole named day.
		conditions = append(conditions, "created_at < ?")
		args = append(args, startOfDay(*params.CreatedBefore).AddDate(0, 0, 1))
	}

	orderBy, ok := documentOrderings[params.Ordering]
	if !ok {
		orderBy = documentOrderings["-created_at"]
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery, countArgs, err := sqlx.In("SELECT COUNT(*) FROM documents "+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}

	selectQuery, selectArgs, err := sqlx.In(
		fmt.Sprintf("SELECT * FROM documents %s ORDER BY %s, id LIMIT ? OFFSET ?", where, orderBy),
		append(args, perPage, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}
	var docs []models.Document
	if err := db.SelectContext(ctx, &docs, db.Rebind(selectQuery), selectArgs...); err != nil {
		return nil, 0, fmt.Errorf("list query failed: %w", err)
	}

	if err := db.LoadDocumentRelations(ctx, docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// LoadDocumentRelations fills Folder and Tags on each document in place.
func (db *DB) LoadDocumentRelations(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(docs))
	var folderIDs []string
	for _, d := range docs {
		ids = append(ids, d.ID)
		if d.FolderID != nil {
			folderIDs = append(folderIDs, *d.FolderID)
		}
	}

	type tagRow struct {
		DocumentID string `db:"document_id"`
		ID         string `db:"id"`
		Name       string `db:"name"`
	}
	query, args, err := sqlx.In(`
		SELECT dt.document_id, t.id, t.name
		FROM document_tags dt JOIN tags t ON t.id = dt.tag_id
		WHERE dt.document_id IN (?)
		ORDER BY t.name, t.id`, ids)
	if err != nil {
		return fmt.Errorf("failed to build tag query: %w", err)
	}
	var rows []tagRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load document tags: %w", err)
	}
	tagsByDoc := make(map[string][]models.TagRef)
	for _, r := range rows {
		tagsByDoc[r.DocumentID] = append(tagsByDoc[r.DocumentID], models.TagRef{ID: r.ID, Name: r.Name})
	}

	folders := make(map[string]models.FolderRef)
	if len(folderIDs) > 0 {
		query, args, err := sqlx.In(`SELECT id, name FROM folders WHERE id IN (?)`, folderIDs)
		if err != nil {
			return fmt.Errorf("failed to build folder query: %w", err)
		}
		var refs []models.FolderRef
		if err := db.SelectContext(ctx, &refs, db.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to load document folders: %w", err)
		}
		for _, f := range refs {
			folders[f.ID] = f
		}
	}

	for i := range docs {
		docs[i].Tags = tagsByDoc[docs[i].ID]
		if docs[i].Tags == nil {
			docs[i].Tags = []models.TagRef{}
		}
		docs[i].Folder = nil
		if docs[i].FolderID != nil {
			if f, ok := folders[*docs[i].FolderID]; ok {
				docs[i].Folder = &f
			}
		}
	}
	return nil
}

// UpdateDocumentDetails persists user edits: title, author, folder and
// (when tagIDs is non-nil) the tag set. The stored file and the hash/text
// fields are never touched here.
func (db *DB) UpdateDocumentDetails(ctx context.Context, d *models.Document, tagIDs *[]string) error {
	d.UpdatedAt = now()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE documents SET title = ?, author = ?, folder_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`),
		d.Title, d.Author, d.FolderID, d.UpdatedAt, d.ID, d.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if err := expectOne(res, "document"); err != nil {
		return err
	}

	if tagIDs != nil {
		if err := replaceTags(ctx, tx, d.ID, *tagIDs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteDocument removes one of the owner's documents. Tag links cascade;
// extraction jobs are kept with document_id set to NULL.
func (db *DB) DeleteDocument(ctx context.Context, ownerID, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		DELETE FROM documents WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOne(res, "document")
}

// replaceTags sets the document's tag links to exactly tagIDs.
func replaceTags(ctx context.Context, tx *sqlx.Tx, documentID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM document_tags WHERE document_id = ?`), documentID); err != nil {
		return fmt.Errorf("failed to clear document tags: %w", err)
	}
	seen := make(map[string]bool, len(tagIDs))
	for _, tagID := range tagIDs {
		if tagID == "" || seen[tagID] {
			continue
		}
		seen[tagID] = true
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO document_tags (document_id, tag_id) VALUES (?, ?)`), documentID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %s: %w", tagID, err)
		}
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ListProcessedDocuments pages through all processed documents by ID, for
// rebuilding the search index.
func (db *DB) ListProcessedDocuments(ctx context.Context, afterID string, limit int) ([]models.Document, error) {
	var docs []models.Document
	err := db.SelectContext(ctx, &docs, db.Rebind(`
		SELECT * FROM documents WHERE is_processed = ? AND id > ? ORDER BY id LIMIT ?`),
		true, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed documents: %w", err)
	}
	return docs, nil
}
