package models

import "time"

// Software represents one managed software product.
type Software struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	CategoryID  *string   `db:"category_id" json:"category_id,omitempty"`
	Description string    `db:"description" json:"description"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Category groups software products.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Version is one released version of a software product.
// (software_id, version_number) is unique; rows are created lazily the
// first time a typed version string is seen.
type Version struct {
	ID            string    `db:"id" json:"id"`
	SoftwareID    string    `db:"software_id" json:"software_id"`
	VersionNumber string    `db:"version_number" json:"version_number"`
	ReleaseDate   time.Time `db:"release_date" json:"release_date"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedBy     *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
