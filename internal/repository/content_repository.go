package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

// ContentRegistrar is the per-kind persistence contract for the four content
// tables. One implementation exists per content kind; callers select it
// through the ContentRegistry by enum, never by string-keyed SQL dispatch.
type ContentRegistrar interface {
	Kind() models.ContentKind
	// ValidateMetadata checks the kind-specific required fields of a final
	// chunk before any storage commit happens.
	ValidateMetadata(meta dto.UploadMetadata) error
	// Insert persists the record within the caller's transaction.
	Insert(ctx context.Context, tx *sqlx.Tx, rec *models.ContentRecord) error
	// FetchJoined loads the row together with its human-readable foreign keys.
	FetchJoined(ctx context.Context, id string) (*models.ContentDetail, error)
	// FindByStoredName resolves a stored filename back to its owning row.
	FindByStoredName(ctx context.Context, storedName string) (*models.ContentRecord, error)
	// List returns joined rows, newest first, optionally scoped to one
	// software product. Visibility filtering happens above this layer.
	List(ctx context.Context, softwareID string, limit, offset int) ([]models.ContentDetail, error)
	Delete(ctx context.Context, id string) error
}

// ContentRegistry holds the four registrars keyed by content kind.
type ContentRegistry struct {
	registrars map[models.ContentKind]ContentRegistrar
}

// NewContentRegistry wires one registrar per content table.
func NewContentRegistry(db *sqlx.DB) *ContentRegistry {
	regs := []ContentRegistrar{
		&documentRegistrar{db: db},
		&patchRegistrar{db: db},
		&linkFileRegistrar{db: db},
		&miscFileRegistrar{db: db},
	}
	m := make(map[models.ContentKind]ContentRegistrar, len(regs))
	for _, r := range regs {
		m[r.Kind()] = r
	}
	return &ContentRegistry{registrars: m}
}

// For returns the registrar for the given kind.
func (r *ContentRegistry) For(kind models.ContentKind) (ContentRegistrar, bool) {
	reg, ok := r.registrars[kind]
	return reg, ok
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func prepareRecord(rec *models.ContentRecord, kind models.ContentKind) {
	rec.Kind = kind
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}

func requireField(value, message string) error {
	if strings.TrimSpace(value) == "" {
		return appErrors.Clone(appErrors.ErrValidation, message)
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// listJoined runs a joined list query; softwareColumn names the column the
// optional software filter applies to (it differs between the software-owned
// and version-owned tables).
func listJoined(ctx context.Context, db *sqlx.DB, baseQuery, softwareColumn, orderColumn, softwareID string, limit, offset int, kind models.ContentKind) ([]models.ContentDetail, error) {
	limit, offset = clampPage(limit, offset)

	query := baseQuery
	args := make([]interface{}, 0, 3)
	if softwareID != "" {
		args = append(args, softwareID)
		query += ` WHERE ` + softwareColumn + ` = $1`
	}
	args = append(args, limit, offset)
	query += ` ORDER BY ` + orderColumn + ` DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	items := make([]models.ContentDetail, 0)
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Kind = kind
	}
	return items, nil
}

// documentRegistrar persists rows in the documents table.
type documentRegistrar struct {
	db *sqlx.DB
}

func (r *documentRegistrar) Kind() models.ContentKind { return models.KindDocument }

func (r *documentRegistrar) ValidateMetadata(meta dto.UploadMetadata) error {
	if err := requireField(meta.Name, "document name is required"); err != nil {
		return err
	}
	return requireField(meta.SoftwareID, "owning software id is required")
}

func (r *documentRegistrar) Insert(ctx context.Context, tx *sqlx.Tx, rec *models.ContentRecord) error {
	prepareRecord(rec, models.KindDocument)
	const query = `INSERT INTO documents
	(id, software_id, category_id, name, stored_filename, original_filename, file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at)
	VALUES (:id, :software_id, :category_id, :name, :stored_filename, :original_filename, :file_size, :mime_type, :is_external, :external_url, :created_by, :updated_by, :created_at, :updated_at)`
	_, err := tx.NamedExecContext(ctx, query, rec)
	return err
}

func (r *documentRegistrar) FetchJoined(ctx context.Context, id string) (*models.ContentDetail, error) {
	const query = `SELECT d.id, d.software_id, d.category_id, d.name, d.stored_filename, d.original_filename,
       d.file_size, d.mime_type, d.is_external, d.external_url, d.created_by, d.updated_by, d.created_at, d.updated_at,
       s.name AS software_name, c.name AS category_name, u.full_name AS uploader_name
	FROM documents d
	JOIN software s ON s.id = d.software_id
	LEFT JOIN categories c ON c.id = d.category_id
	LEFT JOIN users u ON u.id = d.created_by
	WHERE d.id = $1`
	var detail models.ContentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	detail.Kind = models.KindDocument
	return &detail, nil
}

func (r *documentRegistrar) FindByStoredName(ctx context.Context, storedName string) (*models.ContentRecord, error) {
	const query = `SELECT id, software_id, category_id, name, stored_filename, original_filename,
       file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at
	FROM documents WHERE stored_filename = $1`
	var rec models.ContentRecord
	if err := r.db.GetContext(ctx, &rec, query, storedName); err != nil {
		return nil, err
	}
	rec.Kind = models.KindDocument
	return &rec, nil
}

func (r *documentRegistrar) List(ctx context.Context, softwareID string, limit, offset int) ([]models.ContentDetail, error) {
	const query = `SELECT d.id, d.software_id, d.category_id, d.name, d.stored_filename, d.original_filename,
       d.file_size, d.mime_type, d.is_external, d.external_url, d.created_by, d.updated_by, d.created_at, d.updated_at,
       s.name AS software_name, c.name AS category_name, u.full_name AS uploader_name
	FROM documents d
	JOIN software s ON s.id = d.software_id
	LEFT JOIN categories c ON c.id = d.category_id
	LEFT JOIN users u ON u.id = d.created_by`
	return listJoined(ctx, r.db, query, "d.software_id", "d.created_at", softwareID, limit, offset, models.KindDocument)
}

func (r *documentRegistrar) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, `DELETE FROM documents WHERE id = $1`, id)
}

// patchRegistrar persists rows in the patches table.
type patchRegistrar struct {
	db *sqlx.DB
}

func (r *patchRegistrar) Kind() models.ContentKind { return models.KindPatch }

func (r *patchRegistrar) ValidateMetadata(meta dto.UploadMetadata) error {
	if err := requireField(meta.Name, "patch name is required"); err != nil {
		return err
	}
	if err := requireField(meta.SoftwareID, "owning software id is required"); err != nil {
		return err
	}
	if strings.TrimSpace(meta.VersionID) == "" && strings.TrimSpace(meta.Version) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "a version id or version string is required")
	}
	return nil
}

func (r *patchRegistrar) Insert(ctx context.Context, tx *sqlx.Tx, rec *models.ContentRecord) error {
	prepareRecord(rec, models.KindPatch)
	const query = `INSERT INTO patches
	(id, version_id, name, stored_filename, original_filename, file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at)
	VALUES (:id, :version_id, :name, :stored_filename, :original_filename, :file_size, :mime_type, :is_external, :external_url, :created_by, :updated_by, :created_at, :updated_at)`
	_, err := tx.NamedExecContext(ctx, query, rec)
	return err
}

func (r *patchRegistrar) FetchJoined(ctx context.Context, id string) (*models.ContentDetail, error) {
	const query = `SELECT p.id, p.version_id, v.software_id, p.name, p.stored_filename, p.original_filename,
       p.file_size, p.mime_type, p.is_external, p.external_url, p.created_by, p.updated_by, p.created_at, p.updated_at,
       v.version_number, s.name AS software_name, u.full_name AS uploader_name
	FROM patches p
	JOIN versions v ON v.id = p.version_id
	JOIN software s ON s.id = v.software_id
	LEFT JOIN users u ON u.id = p.created_by
	WHERE p.id = $1`
	var detail models.ContentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	detail.Kind = models.KindPatch
	return &detail, nil
}

func (r *patchRegistrar) FindByStoredName(ctx context.Context, storedName string) (*models.ContentRecord, error) {
	const query = `SELECT id, version_id, name, stored_filename, original_filename,
       file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at
	FROM patches WHERE stored_filename = $1`
	var rec models.ContentRecord
	if err := r.db.GetContext(ctx, &rec, query, storedName); err != nil {
		return nil, err
	}
	rec.Kind = models.KindPatch
	return &rec, nil
}

func (r *patchRegistrar) List(ctx context.Context, softwareID string, limit, offset int) ([]models.ContentDetail, error) {
	const query = `SELECT p.id, p.version_id, v.software_id, p.name, p.stored_filename, p.original_filename,
       p.file_size, p.mime_type, p.is_external, p.external_url, p.created_by, p.updated_by, p.created_at, p.updated_at,
       v.version_number, s.name AS software_name, u.full_name AS uploader_name
	FROM patches p
	JOIN versions v ON v.id = p.version_id
	JOIN software s ON s.id = v.software_id
	LEFT JOIN users u ON u.id = p.created_by`
	return listJoined(ctx, r.db, query, "v.software_id", "p.created_at", softwareID, limit, offset, models.KindPatch)
}

func (r *patchRegistrar) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, `DELETE FROM patches WHERE id = $1`, id)
}

// linkFileRegistrar persists rows in the link_files table. Link files may be
// external URLs, in which case no physical file is stored.
type linkFileRegistrar struct {
	db *sqlx.DB
}

func (r *linkFileRegistrar) Kind() models.ContentKind { return models.KindLinkFile }

func (r *linkFileRegistrar) ValidateMetadata(meta dto.UploadMetadata) error {
	if err := requireField(meta.Name, "link name is required"); err != nil {
		return err
	}
	if err := requireField(meta.SoftwareID, "owning software id is required"); err != nil {
		return err
	}
	if strings.TrimSpace(meta.VersionID) == "" && strings.TrimSpace(meta.Version) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "a version id or version string is required")
	}
	if meta.IsExternal {
		return requireField(meta.ExternalURL, "external link requires a url")
	}
	return nil
}

func (r *linkFileRegistrar) Insert(ctx context.Context, tx *sqlx.Tx, rec *models.ContentRecord) error {
	prepareRecord(rec, models.KindLinkFile)
	const query = `INSERT INTO link_files
	(id, version_id, name, stored_filename, original_filename, file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at)
	VALUES (:id, :version_id, :name, :stored_filename, :original_filename, :file_size, :mime_type, :is_external, :external_url, :created_by, :updated_by, :created_at, :updated_at)`
	_, err := tx.NamedExecContext(ctx, query, rec)
	return err
}

func (r *linkFileRegistrar) FetchJoined(ctx context.Context, id string) (*models.ContentDetail, error) {
	const query = `SELECT l.id, l.version_id, v.software_id, l.name, l.stored_filename, l.original_filename,
       l.file_size, l.mime_type, l.is_external, l.external_url, l.created_by, l.updated_by, l.created_at, l.updated_at,
       v.version_number, s.name AS software_name, u.full_name AS uploader_name
	FROM link_files l
	JOIN versions v ON v.id = l.version_id
	JOIN software s ON s.id = v.software_id
	LEFT JOIN users u ON u.id = l.created_by
	WHERE l.id = $1`
	var detail models.ContentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	detail.Kind = models.KindLinkFile
	return &detail, nil
}

func (r *linkFileRegistrar) FindByStoredName(ctx context.Context, storedName string) (*models.ContentRecord, error) {
	const query = `SELECT id, version_id, name, stored_filename, original_filename,
       file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at
	FROM link_files WHERE stored_filename = $1`
	var rec models.ContentRecord
	if err := r.db.GetContext(ctx, &rec, query, storedName); err != nil {
		return nil, err
	}
	rec.Kind = models.KindLinkFile
	return &rec, nil
}

func (r *linkFileRegistrar) List(ctx context.Context, softwareID string, limit, offset int) ([]models.ContentDetail, error) {
	const query = `SELECT l.id, l.version_id, v.software_id, l.name, l.stored_filename, l.original_filename,
       l.file_size, l.mime_type, l.is_external, l.external_url, l.created_by, l.updated_by, l.created_at, l.updated_at,
       v.version_number, s.name AS software_name, u.full_name AS uploader_name
	FROM link_files l
	JOIN versions v ON v.id = l.version_id
	JOIN software s ON s.id = v.software_id
	LEFT JOIN users u ON u.id = l.created_by`
	return listJoined(ctx, r.db, query, "v.software_id", "l.created_at", softwareID, limit, offset, models.KindLinkFile)
}

func (r *linkFileRegistrar) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, `DELETE FROM link_files WHERE id = $1`, id)
}

// miscFileRegistrar persists rows in the misc_files table.
type miscFileRegistrar struct {
	db *sqlx.DB
}

func (r *miscFileRegistrar) Kind() models.ContentKind { return models.KindMiscFile }

func (r *miscFileRegistrar) ValidateMetadata(meta dto.UploadMetadata) error {
	if err := requireField(meta.Name, "file name is required"); err != nil {
		return err
	}
	return requireField(meta.SoftwareID, "owning software id is required")
}

func (r *miscFileRegistrar) Insert(ctx context.Context, tx *sqlx.Tx, rec *models.ContentRecord) error {
	prepareRecord(rec, models.KindMiscFile)
	const query = `INSERT INTO misc_files
	(id, software_id, name, stored_filename, original_filename, file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at)
	VALUES (:id, :software_id, :name, :stored_filename, :original_filename, :file_size, :mime_type, :is_external, :external_url, :created_by, :updated_by, :created_at, :updated_at)`
	_, err := tx.NamedExecContext(ctx, query, rec)
	return err
}

func (r *miscFileRegistrar) FetchJoined(ctx context.Context, id string) (*models.ContentDetail, error) {
	const query = `SELECT m.id, m.software_id, m.name, m.stored_filename, m.original_filename,
       m.file_size, m.mime_type, m.is_external, m.external_url, m.created_by, m.updated_by, m.created_at, m.updated_at,
       s.name AS software_name, u.full_name AS uploader_name
	FROM misc_files m
	JOIN software s ON s.id = m.software_id
	LEFT JOIN users u ON u.id = m.created_by
	WHERE m.id = $1`
	var detail models.ContentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	detail.Kind = models.KindMiscFile
	return &detail, nil
}

func (r *miscFileRegistrar) FindByStoredName(ctx context.Context, storedName string) (*models.ContentRecord, error) {
	const query = `SELECT id, software_id, name, stored_filename, original_filename,
       file_size, mime_type, is_external, external_url, created_by, updated_by, created_at, updated_at
	FROM misc_files WHERE stored_filename = $1`
	var rec models.ContentRecord
	if err := r.db.GetContext(ctx, &rec, query, storedName); err != nil {
		return nil, err
	}
	rec.Kind = models.KindMiscFile
	return &rec, nil
}

func (r *miscFileRegistrar) List(ctx context.Context, softwareID string, limit, offset int) ([]models.ContentDetail, error) {
	const query = `SELECT m.id, m.software_id, m.name, m.stored_filename, m.original_filename,
       m.file_size, m.mime_type, m.is_external, m.external_url, m.created_by, m.updated_by, m.created_at, m.updated_at,
       s.name AS software_name, u.full_name AS uploader_name
	FROM misc_files m
	JOIN software s ON s.id = m.software_id
	LEFT JOIN users u ON u.id = m.created_by`
	return listJoined(ctx, r.db, query, "m.software_id", "m.created_at", softwareID, limit, offset, models.KindMiscFile)
}

func (r *miscFileRegistrar) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, `DELETE FROM misc_files WHERE id = $1`, id)
}

func deleteByID(ctx context.Context, db *sqlx.DB, query, id string) error {
	_, err := db.ExecContext(ctx, query, id)
	return err
}
