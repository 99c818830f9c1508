package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

type softwareStore interface {
	FindByID(ctx context.Context, id string) (*models.Software, error)
	List(ctx context.Context, limit, offset int) ([]models.Software, error)
}

// SoftwareService exposes the read side of the software catalogue.
type SoftwareService struct {
	repo   softwareStore
	logger *zap.Logger
}

// NewSoftwareService constructs the service.
func NewSoftwareService(repo softwareStore, logger *zap.Logger) *SoftwareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoftwareService{repo: repo, logger: logger}
}

// FindByID fetches one software product.
func (s *SoftwareService) FindByID(ctx context.Context, id string) (*models.Software, error) {
	sw, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "software not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load software")
	}
	return sw, nil
}

// List returns a page of the catalogue.
func (s *SoftwareService) List(ctx context.Context, limit, offset int) ([]models.Software, error) {
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list software")
	}
	return items, nil
}
