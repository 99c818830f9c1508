package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/internal/repository"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

type versionStore interface {
	FindByID(ctx context.Context, id string) (*models.Version, error)
	FindBySoftwareAndNumber(ctx context.Context, softwareID, versionNumber string) (*models.Version, error)
	Insert(ctx context.Context, v *models.Version) error
	ListBySoftware(ctx context.Context, softwareID string) ([]models.Version, error)
}

// VersionService resolves the version a version-scoped item attaches to,
// creating version rows lazily from typed version strings.
type VersionService struct {
	repo   versionStore
	logger *zap.Logger
}

// NewVersionService constructs the service.
func NewVersionService(repo versionStore, logger *zap.Logger) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{repo: repo, logger: logger}
}

// Resolve returns the version identified either by an explicit id or by a
// typed version string under the owning software. A typed string that names
// no existing version creates one; when two uploads race on the same string
// the unique constraint decides and the loser adopts the winner's row, so
// callers always converge on a single version id.
func (s *VersionService) Resolve(ctx context.Context, softwareID, versionID, versionNumber string, actorID *string) (*models.Version, error) {
	if id := strings.TrimSpace(versionID); id != "" {
		version, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "referenced version does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
		}
		if softwareID != "" && version.SoftwareID != softwareID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "version belongs to a different software")
		}
		return version, nil
	}

	number := strings.TrimSpace(versionNumber)
	if number == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a version id or version string is required")
	}
	if softwareID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owning software id is required")
	}

	version, err := s.repo.FindBySoftwareAndNumber(ctx, softwareID, number)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up version")
	}

	candidate := &models.Version{
		SoftwareID:    softwareID,
		VersionNumber: number,
		CreatedBy:     actorID,
	}
	if err := s.repo.Insert(ctx, candidate); err != nil {
		if repository.IsUniqueViolation(err) {
			// A concurrent upload created the row first; adopt it.
			winner, lookupErr := s.repo.FindBySoftwareAndNumber(ctx, softwareID, number)
			if lookupErr != nil {
				return nil, appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load concurrently created version")
			}
			s.logger.Debug("version creation lost race, reusing existing row",
				zap.String("software_id", softwareID), zap.String("version_number", number))
			return winner, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create version")
	}
	return candidate, nil
}

// ListBySoftware lists the known versions of one software product.
func (s *VersionService) ListBySoftware(ctx context.Context, softwareID string) ([]models.Version, error) {
	if strings.TrimSpace(softwareID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "software id is required")
	}
	versions, err := s.repo.ListBySoftware(ctx, softwareID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}
