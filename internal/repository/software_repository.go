package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/depot-labs/depot-api/internal/models"
)

// SoftwareRepository provides the read side of the software catalogue used
// by upload clients. Full catalogue administration lives elsewhere.
type SoftwareRepository struct {
	db *sqlx.DB
}

// NewSoftwareRepository constructs the repository.
func NewSoftwareRepository(db *sqlx.DB) *SoftwareRepository {
	return &SoftwareRepository{db: db}
}

// FindByID fetches one software row.
func (r *SoftwareRepository) FindByID(ctx context.Context, id string) (*models.Software, error) {
	const query = `SELECT id, name, category_id, description, created_by, created_at, updated_at
	FROM software WHERE id = $1`
	var sw models.Software
	if err := r.db.GetContext(ctx, &sw, query, id); err != nil {
		return nil, err
	}
	return &sw, nil
}

// List returns the catalogue ordered by name.
func (r *SoftwareRepository) List(ctx context.Context, limit, offset int) ([]models.Software, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, name, category_id, description, created_by, created_at, updated_at
	FROM software ORDER BY name LIMIT $1 OFFSET $2`
	var items []models.Software
	if err := r.db.SelectContext(ctx, &items, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list software: %w", err)
	}
	return items, nil
}

// ListWatchers returns the ids of users watching one software product.
func (r *SoftwareRepository) ListWatchers(ctx context.Context, softwareID string) ([]string, error) {
	const query = `SELECT user_id FROM software_watchers WHERE software_id = $1`
	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, query, softwareID); err != nil {
		return nil, fmt.Errorf("list software watchers: %w", err)
	}
	return userIDs, nil
}
