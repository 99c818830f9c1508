package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

type permissionStore interface {
	Find(ctx context.Context, userID, fileID string, fileType models.ContentKind) (*models.FilePermission, error)
	Upsert(ctx context.Context, perm *models.FilePermission) error
	ListByFile(ctx context.Context, fileID string, fileType models.ContentKind) ([]models.FilePermission, error)
	Delete(ctx context.Context, userID, fileID string, fileType models.ContentKind) error
}

// PermissionService evaluates per-user file access. The posture is
// default-allow: only an explicit false in the sparse permission table
// denies. Anonymous callers are always allowed; restricting a file to
// authenticated users is an authentication concern, not a permission row.
type PermissionService struct {
	repo      permissionStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPermissionService constructs the service.
func NewPermissionService(repo permissionStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PermissionService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// CanView reports whether the user may see the file in listings.
func (s *PermissionService) CanView(ctx context.Context, userID *string, fileID string, fileType models.ContentKind) (bool, error) {
	return s.evaluate(ctx, userID, fileID, fileType, func(p *models.FilePermission) *bool { return p.CanView })
}

// CanDownload reports whether the user may fetch the file's bytes. The same
// rule backs the listing and delivery paths so the two never disagree.
func (s *PermissionService) CanDownload(ctx context.Context, userID *string, fileID string, fileType models.ContentKind) (bool, error) {
	return s.evaluate(ctx, userID, fileID, fileType, func(p *models.FilePermission) *bool { return p.CanDownload })
}

func (s *PermissionService) evaluate(ctx context.Context, userID *string, fileID string, fileType models.ContentKind, flag func(*models.FilePermission) *bool) (bool, error) {
	if userID == nil || *userID == "" {
		return true, nil
	}
	perm, err := s.repo.Find(ctx, *userID, fileID, fileType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate file permission")
	}
	value := flag(perm)
	if value == nil {
		return true, nil
	}
	return *value, nil
}

// Upsert creates or replaces one explicit permission rule.
func (s *PermissionService) Upsert(ctx context.Context, req dto.UpsertPermissionRequest, actor *models.JWTClaims, clientIP, userAgent string) (*models.FilePermission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid permission payload")
	}
	kind, ok := models.ParseContentKind(req.FileType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown file type")
	}

	perm := &models.FilePermission{
		UserID:      req.UserID,
		FileID:      req.FileID,
		FileType:    kind,
		CanView:     req.CanView,
		CanDownload: req.CanDownload,
	}
	if actor != nil {
		actorID := actor.UserID
		perm.UpdatedBy = &actorID
	}

	if err := s.repo.Upsert(ctx, perm); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save file permission")
	}

	s.recordAudit(ctx, perm, actor, clientIP, userAgent)
	return perm, nil
}

// ListByFile returns every explicit rule attached to one file.
func (s *PermissionService) ListByFile(ctx context.Context, fileID, fileType string) ([]models.FilePermission, error) {
	kind, ok := models.ParseContentKind(fileType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown file type")
	}
	perms, err := s.repo.ListByFile(ctx, fileID, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list file permissions")
	}
	return perms, nil
}

// Remove deletes one explicit rule, restoring the default-allow posture for
// that user and file.
func (s *PermissionService) Remove(ctx context.Context, userID, fileID, fileType string) error {
	kind, ok := models.ParseContentKind(fileType)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown file type")
	}
	if err := s.repo.Delete(ctx, userID, fileID, kind); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file permission")
	}
	return nil
}

func (s *PermissionService) recordAudit(ctx context.Context, perm *models.FilePermission, actor *models.JWTClaims, clientIP, userAgent string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     models.AuditActionPermissionUpsert,
		Resource:   "file_permission",
		ResourceID: &perm.FileID,
		IPAddress:  clientIP,
		UserAgent:  userAgent,
	}
	if actor != nil {
		actorID := actor.UserID
		log.UserID = &actorID
	}
	if payload, err := json.Marshal(perm); err == nil {
		log.NewValues = payload
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record permission audit log", zap.Error(err))
	}
}
