package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/depot-labs/depot-api/internal/models"
)

// PermissionRepository handles the sparse per-user file permission table.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Find returns the at-most-one row for (user, file, kind). sql.ErrNoRows
// means no explicit rule exists and the default-allow posture applies.
func (r *PermissionRepository) Find(ctx context.Context, userID, fileID string, fileType models.ContentKind) (*models.FilePermission, error) {
	const query = `SELECT user_id, file_id, file_type, can_view, can_download, updated_by, updated_at
	FROM file_permissions WHERE user_id = $1 AND file_id = $2 AND file_type = $3`
	var perm models.FilePermission
	if err := r.db.GetContext(ctx, &perm, query, userID, fileID, fileType); err != nil {
		return nil, err
	}
	return &perm, nil
}

// Upsert creates or replaces one permission row. Only administrators call
// this; rows are never created automatically.
func (r *PermissionRepository) Upsert(ctx context.Context, perm *models.FilePermission) error {
	perm.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO file_permissions (user_id, file_id, file_type, can_view, can_download, updated_by, updated_at)
	VALUES (:user_id, :file_id, :file_type, :can_view, :can_download, :updated_by, :updated_at)
	ON CONFLICT (user_id, file_id, file_type)
	DO UPDATE SET can_view = EXCLUDED.can_view, can_download = EXCLUDED.can_download,
	              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, perm); err != nil {
		return fmt.Errorf("upsert file permission: %w", err)
	}
	return nil
}

// ListByFile returns every explicit rule for one file.
func (r *PermissionRepository) ListByFile(ctx context.Context, fileID string, fileType models.ContentKind) ([]models.FilePermission, error) {
	const query = `SELECT user_id, file_id, file_type, can_view, can_download, updated_by, updated_at
	FROM file_permissions WHERE file_id = $1 AND file_type = $2 ORDER BY user_id`
	var perms []models.FilePermission
	if err := r.db.SelectContext(ctx, &perms, query, fileID, fileType); err != nil {
		return nil, fmt.Errorf("list file permissions: %w", err)
	}
	return perms, nil
}

// Delete removes one explicit rule, restoring the default-allow posture.
func (r *PermissionRepository) Delete(ctx context.Context, userID, fileID string, fileType models.ContentKind) error {
	const query = `DELETE FROM file_permissions WHERE user_id = $1 AND file_id = $2 AND file_type = $3`
	if _, err := r.db.ExecContext(ctx, query, userID, fileID, fileType); err != nil {
		return fmt.Errorf("delete file permission: %w", err)
	}
	return nil
}
