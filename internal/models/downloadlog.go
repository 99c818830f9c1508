package models

import "time"

// DownloadLogEntry is one append-only record of a successful delivery.
type DownloadLogEntry struct {
	ID        string      `db:"id" json:"id"`
	FileID    string      `db:"file_id" json:"file_id"`
	FileType  ContentKind `db:"file_type" json:"file_type"`
	UserID    *string     `db:"user_id" json:"user_id,omitempty"`
	IPAddress string      `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// DownloadLogFilter narrows listing queries.
type DownloadLogFilter struct {
	FileID   string
	FileType ContentKind
	UserID   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
