package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/depot-labs/depot-api/internal/models"
)

// VersionRepository handles version row persistence.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// FindByID retrieves one version row.
func (r *VersionRepository) FindByID(ctx context.Context, id string) (*models.Version, error) {
	const query = `SELECT id, software_id, version_number, release_date, notes, created_by, created_at
	FROM versions WHERE id = $1`
	var v models.Version
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindBySoftwareAndNumber looks a version up by its natural key.
func (r *VersionRepository) FindBySoftwareAndNumber(ctx context.Context, softwareID, versionNumber string) (*models.Version, error) {
	const query = `SELECT id, software_id, version_number, release_date, notes, created_by, created_at
	FROM versions WHERE software_id = $1 AND version_number = $2`
	var v models.Version
	if err := r.db.GetContext(ctx, &v, query, softwareID, versionNumber); err != nil {
		return nil, err
	}
	return &v, nil
}

// Insert persists a new version row and commits immediately. It deliberately
// runs outside any enclosing upload transaction; the unique constraint on
// (software_id, version_number) backstops concurrent creators.
func (r *VersionRepository) Insert(ctx context.Context, v *models.Version) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.ReleaseDate.IsZero() {
		v.ReleaseDate = time.Now().UTC()
	}
	const query = `INSERT INTO versions (id, software_id, version_number, release_date, notes, created_by, created_at)
	VALUES (:id, :software_id, :version_number, :release_date, :notes, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// ListBySoftware returns all versions of one software, newest release first.
func (r *VersionRepository) ListBySoftware(ctx context.Context, softwareID string) ([]models.Version, error) {
	const query = `SELECT id, software_id, version_number, release_date, notes, created_by, created_at
	FROM versions WHERE software_id = $1 ORDER BY release_date DESC, created_at DESC`
	var versions []models.Version
	if err := r.db.SelectContext(ctx, &versions, query, softwareID); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}
