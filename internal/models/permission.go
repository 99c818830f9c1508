package models

import "time"

// FilePermission is one sparse per-user permission row. Absence of a row,
// or a null/true flag, means allow; only an explicit false denies.
type FilePermission struct {
	UserID      string      `db:"user_id" json:"user_id"`
	FileID      string      `db:"file_id" json:"file_id"`
	FileType    ContentKind `db:"file_type" json:"file_type"`
	CanView     *bool       `db:"can_view" json:"can_view,omitempty"`
	CanDownload *bool       `db:"can_download" json:"can_download,omitempty"`
	UpdatedBy   *string     `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
