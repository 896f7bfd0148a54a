// audit.go stores the append-only audit log.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// CreateAuditLog appends an entry.
func (db *DB) CreateAuditLog(ctx context.Context, a *models.AuditLog) error {
	a.ID = newID()
	a.CreatedAt = now()
	if a.Meta == nil {
		a.Meta = models.JSONMap{}
	}
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO audit_logs (id, owner_id, action, target_type, target_id, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.OwnerID, a.Action, a.TargetType, a.TargetID, a.Meta, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns a page of the owner's audit entries, newest first.
func (db *DB) ListAuditLogs(ctx context.Context, params models.AuditListParams) ([]models.AuditLog, int, error) {
	_, perPage, offset := PageBounds(params.Page, params.PerPage)

	conditions := []string{"owner_id = ?"}
	args := []interface{}{params.OwnerID}
	if params.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, params.Action)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind("SELECT COUNT(*) FROM audit_logs "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}

	var logs []models.AuditLog
	err := db.SelectContext(ctx, &logs,
		db.Rebind("SELECT * FROM audit_logs "+where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"),
		append(args, perPage, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list query failed: %w", err)
	}
	return logs, total, nil
}
