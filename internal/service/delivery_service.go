package service

import (
	"context"
	"database/sql"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

type permissionEvaluator interface {
	CanView(ctx context.Context, userID *string, fileID string, fileType models.ContentKind) (bool, error)
	CanDownload(ctx context.Context, userID *string, fileID string, fileType models.ContentKind) (bool, error)
}

type downloadRecorder interface {
	Insert(ctx context.Context, entry *models.DownloadLogEntry) error
}

type fileOpener interface {
	Open(subdir, storedName string) (*os.File, error)
}

// Extensions a browser would render inline are always delivered as opaque
// bytes so stored content cannot script against the application's origin.
var forceOctetStreamExts = map[string]struct{}{
	".html":  {},
	".htm":   {},
	".xhtml": {},
	".svg":   {},
	".xml":   {},
	".js":    {},
}

// FileDelivery is a ready-to-stream file with its response metadata.
type FileDelivery struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
}

// DeliveryService streams stored files to clients. Unknown names and
// external links are reported as not found; an explicit permission denial is
// the only thing that produces forbidden, so the two statuses stay honest.
type DeliveryService struct {
	registry registrarSource
	files    fileOpener
	perms    permissionEvaluator
	logs     downloadRecorder
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDeliveryService constructs the service.
func NewDeliveryService(registry registrarSource, files fileOpener, perms permissionEvaluator, logs downloadRecorder, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{
		registry: registry,
		files:    files,
		perms:    perms,
		logs:     logs,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns the stored items of one kind the caller may see, newest
// first. Rows the caller is explicitly denied from viewing are dropped, so
// listing and delivery answer from the same permission rules.
func (s *DeliveryService) List(ctx context.Context, itemType, softwareID string, actor *models.JWTClaims, limit, offset int) ([]models.ContentDetail, error) {
	kind, ok := models.ParseContentKind(itemType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}
	registrar, ok := s.registry.For(kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}

	rows, err := registrar.List(ctx, softwareID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}

	var userID *string
	if actor != nil {
		id := actor.UserID
		userID = &id
	}

	visible := make([]models.ContentDetail, 0, len(rows))
	for _, row := range rows {
		allowed, err := s.perms.CanView(ctx, userID, row.ID, kind)
		if err != nil {
			return nil, err
		}
		if allowed {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

// Deliver resolves a stored filename, checks the caller's download
// permission and opens the file for streaming. The download audit record is
// best effort: a logging failure never blocks the delivery.
func (s *DeliveryService) Deliver(ctx context.Context, itemType, storedName string, actor *models.JWTClaims, clientIP, userAgent string) (*FileDelivery, error) {
	kind, ok := models.ParseContentKind(itemType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}
	registrar, ok := s.registry.For(kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}

	rec, err := registrar.FindByStoredName(ctx, storedName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve file")
	}
	if rec.IsExternal || rec.StoredFilename == nil {
		// External rows have no bytes here; nothing to deliver.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	var userID *string
	if actor != nil {
		id := actor.UserID
		userID = &id
	}

	allowed, err := s.perms.CanDownload(ctx, userID, rec.ID, kind)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.recordDenied(ctx, rec, kind, userID, clientIP, userAgent)
		s.metrics.DeliveryDenied(string(kind))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download not permitted")
	}

	file, err := s.files.Open(kind.StorageSubdir(), *rec.StoredFilename)
	if err != nil {
		// A database row without its physical file. Report not found to the
		// client and leave a trace for the operator.
		s.logger.Error("stored file missing from disk",
			zap.Error(err), zap.String("item_id", rec.ID), zap.String("stored_name", *rec.StoredFilename))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to stat stored file")
	}

	entry := &models.DownloadLogEntry{
		FileID:    rec.ID,
		FileType:  kind,
		UserID:    userID,
		IPAddress: clientIP,
	}
	if err := s.logs.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record download log", zap.Error(err), zap.String("item_id", rec.ID))
	}

	s.metrics.DeliverySucceeded(string(kind))
	return &FileDelivery{
		File:        file,
		Filename:    rec.OriginalFilename,
		ContentType: deliveryContentType(rec),
		SizeBytes:   info.Size(),
	}, nil
}

func (s *DeliveryService) recordDenied(ctx context.Context, rec *models.ContentRecord, kind models.ContentKind, userID *string, clientIP, userAgent string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionDownloadDenied,
		Resource:   string(kind),
		ResourceID: &rec.ID,
		IPAddress:  clientIP,
		UserAgent:  userAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record denial audit log", zap.Error(err))
	}
}

func deliveryContentType(rec *models.ContentRecord) string {
	ext := strings.ToLower(filepath.Ext(rec.OriginalFilename))
	if _, ok := forceOctetStreamExts[ext]; ok {
		return "application/octet-stream"
	}
	if rec.MimeType != "" {
		return rec.MimeType
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
