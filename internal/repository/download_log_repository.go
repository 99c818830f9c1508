package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/depot-labs/depot-api/internal/models"
)

// DownloadLogRepository appends and lists delivery audit records. Rows are
// never updated or deleted by this subsystem.
type DownloadLogRepository struct {
	db *sqlx.DB
}

// NewDownloadLogRepository constructs the repository.
func NewDownloadLogRepository(db *sqlx.DB) *DownloadLogRepository {
	return &DownloadLogRepository{db: db}
}

// Insert appends one delivery record.
func (r *DownloadLogRepository) Insert(ctx context.Context, entry *models.DownloadLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO download_logs (id, file_id, file_type, user_id, ip_address, created_at)
	VALUES (:id, :file_id, :file_type, :user_id, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert download log: %w", err)
	}
	return nil
}

// List returns delivery records applying the filter, newest first.
func (r *DownloadLogRepository) List(ctx context.Context, filter models.DownloadLogFilter) ([]models.DownloadLogEntry, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, file_id, file_type, user_id, ip_address, created_at FROM download_logs`)
	args := make([]interface{}, 0, 5)
	conditions := make([]string, 0, 5)

	if filter.FileID != "" {
		args = append(args, filter.FileID)
		conditions = append(conditions, fmt.Sprintf("file_id = $%d", len(args)))
	}
	if filter.FileType != "" {
		args = append(args, filter.FileType)
		conditions = append(conditions, fmt.Sprintf("file_type = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 5000 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var entries []models.DownloadLogEntry
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list download logs: %w", err)
	}
	return entries, nil
}
