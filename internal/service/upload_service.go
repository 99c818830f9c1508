package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/internal/repository"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/storage"
)

type chunkStager interface {
	Append(uploadID, originalFilename string, index, total int, r io.Reader) (int64, error)
	PartialPath(uploadID, originalFilename string) string
	Remove(uploadID, originalFilename string) error
	Release(uploadID, originalFilename string) error
}

type fileKeeper interface {
	Promote(srcPath, subdir, storedName string) (string, error)
	Exists(subdir, storedName string) bool
	Size(subdir, storedName string) (int64, error)
	Delete(subdir, storedName string) error
}

type registrarSource interface {
	For(kind models.ContentKind) (repository.ContentRegistrar, bool)
}

type versionResolver interface {
	Resolve(ctx context.Context, softwareID, versionID, versionNumber string, actorID *string) (*models.Version, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type itemEventPublisher interface {
	PublishItemCreated(event models.ItemCreatedEvent)
}

// Stored filenames carry an extension taken from the original name, or from
// this table when the original has none. Unknown MIME types store extensionless.
var mimeExtensions = map[string]string{
	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"application/x-7z-compressed": ".7z",
	"application/gzip":            ".gz",
	"application/msword":          ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"text/plain": ".txt",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// UploadConfig holds ingestion limits.
type UploadConfig struct {
	MaxChunkBytes int64
}

// ChunkInput bundles one incoming chunk with its request context.
type ChunkInput struct {
	dto.ChunkUploadRequest

	OriginalFilename string
	DeclaredMIME     string
	Body             io.Reader
	Actor            *models.JWTClaims
	ClientIP         string
	UserAgent        string
}

// IngestResult reports either a staged chunk or a committed item.
type IngestResult struct {
	Completed bool
	Ack       *dto.ChunkAck
	Item      *models.ContentDetail
}

// UploadService runs the chunked ingestion pipeline: staging appends, then
// on the final chunk metadata validation, promotion to canonical storage and
// the database commit with a compensating file delete on failure.
type UploadService struct {
	db        *sqlx.DB
	registry  registrarSource
	stager    chunkStager
	files     fileKeeper
	versions  versionResolver
	audit     auditLogger
	publisher itemEventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       UploadConfig
}

// NewUploadService constructs the service.
func NewUploadService(db *sqlx.DB, registry registrarSource, stager chunkStager, files fileKeeper, versions versionResolver, audit auditLogger, publisher itemEventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg UploadConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UploadService{
		db:        db,
		registry:  registry,
		stager:    stager,
		files:     files,
		versions:  versions,
		audit:     audit,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Ingest accepts one chunk. Non-final chunks are staged and acknowledged;
// the final chunk (index == total-1) triggers finalization and returns the
// committed item.
func (s *UploadService) Ingest(ctx context.Context, in ChunkInput) (*IngestResult, error) {
	if err := s.validator.Struct(in.ChunkUploadRequest); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chunk payload")
	}

	kind, ok := models.ParseContentKind(in.ItemType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}
	registrar, ok := s.registry.For(kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}

	final := in.ChunkIndex == in.TotalChunks-1

	// External links carry no payload; nothing is staged for them.
	if in.IsExternal {
		if kind != models.KindLinkFile {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only link files may reference an external url")
		}
		if !final {
			return s.ack(in), nil
		}
		return s.finalizeExternal(ctx, registrar, kind, in)
	}

	body := in.Body
	if s.cfg.MaxChunkBytes > 0 {
		body = io.LimitReader(body, s.cfg.MaxChunkBytes+1)
	}
	written, err := s.stager.Append(in.UploadID, in.OriginalFilename, in.ChunkIndex, in.TotalChunks, body)
	if err != nil {
		if errors.Is(err, storage.ErrChunkIndexRange) || errors.Is(err, storage.ErrChunkOutOfOrder) {
			s.metrics.UploadFailed("sequence")
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "chunk rejected: "+err.Error())
		}
		s.metrics.UploadFailed("staging")
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to stage chunk")
	}
	if s.cfg.MaxChunkBytes > 0 && written > s.cfg.MaxChunkBytes {
		// The oversized tail was appended; the assembly is unusable.
		s.cleanupStaging(in)
		s.metrics.UploadFailed("size")
		return nil, appErrors.Clone(appErrors.ErrValidation, "chunk exceeds maximum allowed size")
	}
	s.metrics.ChunkReceived()

	if !final {
		return s.ack(in), nil
	}
	return s.finalize(ctx, registrar, kind, in)
}

func (s *UploadService) ack(in ChunkInput) *IngestResult {
	return &IngestResult{
		Ack: &dto.ChunkAck{
			UploadID:  in.UploadID,
			Received:  in.ChunkIndex + 1,
			Remaining: in.TotalChunks - in.ChunkIndex - 1,
		},
	}
}

// finalize commits one fully staged upload. Order matters: metadata is
// validated before anything touches canonical storage, and a failed database
// insert deletes the already-moved file so storage and database never
// disagree about which files exist.
func (s *UploadService) finalize(ctx context.Context, registrar repository.ContentRegistrar, kind models.ContentKind, in ChunkInput) (*IngestResult, error) {
	if err := registrar.ValidateMetadata(in.UploadMetadata); err != nil {
		s.cleanupStaging(in)
		s.metrics.UploadFailed("metadata")
		return nil, err
	}

	rec, softwareID, err := s.buildRecord(ctx, kind, in)
	if err != nil {
		s.cleanupStaging(in)
		s.metrics.UploadFailed("version")
		return nil, err
	}

	mimeType := s.resolveMIME(in)
	storedName := s.deriveStoredName(in.OriginalFilename, mimeType)
	subdir := kind.StorageSubdir()

	// Promote must never overwrite an existing canonical file.
	if s.files.Exists(subdir, storedName) {
		s.cleanupStaging(in)
		s.metrics.UploadFailed("promote")
		return nil, appErrors.Clone(appErrors.ErrStorage, "stored name already occupied")
	}

	src := s.stager.PartialPath(in.UploadID, in.OriginalFilename)
	if _, err := s.files.Promote(src, subdir, storedName); err != nil {
		s.cleanupStaging(in)
		s.metrics.UploadFailed("promote")
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to commit file to storage")
	}
	if err := s.stager.Release(in.UploadID, in.OriginalFilename); err != nil {
		s.logger.Warn("failed to release staging sidecar", zap.Error(err), zap.String("upload_id", in.UploadID))
	}

	size, err := s.files.Size(subdir, storedName)
	if err != nil {
		if delErr := s.files.Delete(subdir, storedName); delErr != nil {
			s.logger.Error("failed to remove file after stat failure", zap.Error(delErr), zap.String("stored_name", storedName))
		}
		s.metrics.UploadFailed("promote")
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to verify stored file")
	}

	rec.StoredFilename = &storedName
	rec.OriginalFilename = in.OriginalFilename
	rec.FileSize = size
	rec.MimeType = mimeType

	if err := s.insertRecord(ctx, registrar, rec); err != nil {
		if delErr := s.files.Delete(subdir, storedName); delErr != nil {
			s.logger.Error("failed to remove orphaned file after rollback",
				zap.Error(delErr), zap.String("stored_name", storedName), zap.String("item_type", string(kind)))
		}
		s.recordAudit(ctx, in, models.AuditActionUploadRolledBack, rec.ID, kind)
		s.metrics.UploadFailed("insert")
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "stored filename already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist upload")
	}

	return s.committed(ctx, registrar, kind, in, rec, softwareID), nil
}

// finalizeExternal commits a link file that points at an external url.
// No physical file exists for these rows.
func (s *UploadService) finalizeExternal(ctx context.Context, registrar repository.ContentRegistrar, kind models.ContentKind, in ChunkInput) (*IngestResult, error) {
	if err := registrar.ValidateMetadata(in.UploadMetadata); err != nil {
		s.metrics.UploadFailed("metadata")
		return nil, err
	}

	rec, softwareID, err := s.buildRecord(ctx, kind, in)
	if err != nil {
		s.metrics.UploadFailed("version")
		return nil, err
	}
	url := strings.TrimSpace(in.ExternalURL)
	rec.IsExternal = true
	rec.ExternalURL = &url

	if err := s.insertRecord(ctx, registrar, rec); err != nil {
		s.metrics.UploadFailed("insert")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist external link")
	}

	return s.committed(ctx, registrar, kind, in, rec, softwareID), nil
}

// Remove deletes a committed item: the database row and, for non-external
// rows, the physical file. The row goes first; a failed file delete leaves an
// orphaned file for the operator, never a dangling row.
func (s *UploadService) Remove(ctx context.Context, itemType, id string, actor *models.JWTClaims, clientIP, userAgent string) error {
	kind, ok := models.ParseContentKind(itemType)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}
	registrar, ok := s.registry.For(kind)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	}

	detail, err := registrar.FetchJoined(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}

	if err := registrar.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete item")
	}

	if !detail.IsExternal && detail.StoredFilename != nil {
		if err := s.files.Delete(kind.StorageSubdir(), *detail.StoredFilename); err != nil {
			s.logger.Error("failed to remove stored file for deleted item",
				zap.Error(err), zap.String("item_id", id), zap.String("stored_name", *detail.StoredFilename))
		}
	}

	if s.audit != nil {
		log := &models.AuditLog{
			Action:     models.AuditActionItemDeleted,
			Resource:   string(kind),
			ResourceID: &id,
			IPAddress:  clientIP,
			UserAgent:  userAgent,
		}
		if actor != nil {
			actorID := actor.UserID
			log.UserID = &actorID
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record delete audit log", zap.Error(err), zap.String("item_id", id))
		}
	}
	return nil
}

func (s *UploadService) buildRecord(ctx context.Context, kind models.ContentKind, in ChunkInput) (*models.ContentRecord, string, error) {
	rec := &models.ContentRecord{Name: strings.TrimSpace(in.Name)}
	if in.Actor != nil {
		actorID := in.Actor.UserID
		rec.CreatedBy = &actorID
		rec.UpdatedBy = &actorID
	}

	softwareID := strings.TrimSpace(in.SoftwareID)
	switch kind {
	case models.KindDocument:
		rec.SoftwareID = &softwareID
		if category := strings.TrimSpace(in.CategoryID); category != "" {
			rec.CategoryID = &category
		}
	case models.KindMiscFile:
		rec.SoftwareID = &softwareID
	case models.KindPatch, models.KindLinkFile:
		version, err := s.versions.Resolve(ctx, softwareID, in.VersionID, in.Version, rec.CreatedBy)
		if err != nil {
			return nil, "", err
		}
		rec.VersionID = &version.ID
		softwareID = version.SoftwareID
	}
	return rec, softwareID, nil
}

func (s *UploadService) insertRecord(ctx context.Context, registrar repository.ContentRegistrar, rec *models.ContentRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := registrar.Insert(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *UploadService) committed(ctx context.Context, registrar repository.ContentRegistrar, kind models.ContentKind, in ChunkInput, rec *models.ContentRecord, softwareID string) *IngestResult {
	s.cleanupStaging(in)
	s.recordAudit(ctx, in, models.AuditActionUploadFinalized, rec.ID, kind)
	s.metrics.UploadFinalized(string(kind))

	if s.publisher != nil {
		s.publisher.PublishItemCreated(models.ItemCreatedEvent{
			ItemID:     rec.ID,
			ItemType:   kind,
			SoftwareID: softwareID,
			Name:       rec.Name,
			ActorID:    rec.CreatedBy,
			OccurredAt: time.Now().UTC(),
		})
	}

	detail, err := registrar.FetchJoined(ctx, rec.ID)
	if err != nil {
		s.logger.Warn("failed to load committed item detail", zap.Error(err), zap.String("item_id", rec.ID))
		detail = &models.ContentDetail{ContentRecord: *rec}
	}
	return &IngestResult{Completed: true, Item: detail}
}

func (s *UploadService) cleanupStaging(in ChunkInput) {
	if err := s.stager.Remove(in.UploadID, in.OriginalFilename); err != nil {
		s.logger.Warn("failed to clean staging area", zap.Error(err), zap.String("upload_id", in.UploadID))
	}
}

func (s *UploadService) recordAudit(ctx context.Context, in ChunkInput, action, itemID string, kind models.ContentKind) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   string(kind),
		ResourceID: &itemID,
		IPAddress:  in.ClientIP,
		UserAgent:  in.UserAgent,
	}
	if in.Actor != nil {
		actorID := in.Actor.UserID
		log.UserID = &actorID
	}
	if payload, err := json.Marshal(map[string]string{"upload_id": in.UploadID, "name": in.Name}); err == nil {
		log.NewValues = payload
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record upload audit log", zap.Error(err), zap.String("action", action))
	}
}

func (s *UploadService) resolveMIME(in ChunkInput) string {
	if declared := strings.TrimSpace(in.DeclaredMIME); declared != "" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(in.OriginalFilename))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// deriveStoredName builds the server-side filename: a uuid-derived base plus
// an extension taken from the original name or, failing that, from the MIME
// table. Client names never reach the filesystem.
func (s *UploadService) deriveStoredName(originalFilename, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if ext == "" {
		base, _, err := mime.ParseMediaType(mimeType)
		if err != nil {
			base = mimeType
		}
		ext = mimeExtensions[base]
		if ext == "" {
			s.logger.Warn("storing file without extension",
				zap.String("original_filename", originalFilename), zap.String("mime_type", mimeType))
		}
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}
