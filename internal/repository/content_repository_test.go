package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestContentRegistryCoversAllKinds(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	registry := NewContentRegistry(db)
	for _, kind := range []models.ContentKind{models.KindDocument, models.KindPatch, models.KindLinkFile, models.KindMiscFile} {
		registrar, ok := registry.For(kind)
		require.True(t, ok, "missing registrar for %s", kind)
		require.Equal(t, kind, registrar.Kind())
	}
	_, ok := registry.For(models.ContentKind("bogus"))
	require.False(t, ok)
}

func TestDocumentRegistrarValidateMetadata(t *testing.T) {
	reg := &documentRegistrar{}

	require.Error(t, reg.ValidateMetadata(dto.UploadMetadata{SoftwareID: "sw-1"}))
	require.Error(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Manual"}))
	require.NoError(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Manual", SoftwareID: "sw-1"}))
}

func TestPatchRegistrarValidateMetadataRequiresVersion(t *testing.T) {
	reg := &patchRegistrar{}

	require.Error(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Hotfix", SoftwareID: "sw-1"}))
	require.NoError(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Hotfix", SoftwareID: "sw-1", Version: "1.2.3"}))
	require.NoError(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Hotfix", SoftwareID: "sw-1", VersionID: "ver-1"}))
}

func TestLinkFileRegistrarValidateMetadataExternal(t *testing.T) {
	reg := &linkFileRegistrar{}

	require.Error(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Mirror", SoftwareID: "sw-1", Version: "1.0", IsExternal: true}))
	require.NoError(t, reg.ValidateMetadata(dto.UploadMetadata{Name: "Mirror", SoftwareID: "sw-1", Version: "1.0", IsExternal: true, ExternalURL: "https://example.com/d"}))
}

func TestDocumentRegistrarInsertAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	reg := &documentRegistrar{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	softwareID := "sw-1"
	stored := "abc123.pdf"
	rec := &models.ContentRecord{
		SoftwareID:       &softwareID,
		Name:             "Manual",
		StoredFilename:   &stored,
		OriginalFilename: "manual.pdf",
		FileSize:         1024,
		MimeType:         "application/pdf",
	}
	require.NoError(t, reg.Insert(context.Background(), tx, rec))
	require.NoError(t, tx.Commit())
	require.NotEmpty(t, rec.ID)
	require.Equal(t, models.KindDocument, rec.Kind)
	require.False(t, rec.CreatedAt.IsZero())

	rows := sqlmock.NewRows([]string{"id", "software_id", "category_id", "name", "stored_filename", "original_filename", "file_size", "mime_type", "is_external", "external_url", "created_by", "updated_by", "created_at", "updated_at"}).
		AddRow(rec.ID, softwareID, nil, rec.Name, stored, rec.OriginalFilename, rec.FileSize, rec.MimeType, false, nil, nil, nil, rec.CreatedAt, rec.UpdatedAt)
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE stored_filename = $1")).
		WithArgs(stored).
		WillReturnRows(rows)

	found, err := reg.FindByStoredName(context.Background(), stored)
	require.NoError(t, err)
	require.Equal(t, rec.ID, found.ID)
	require.Equal(t, models.KindDocument, found.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchRegistrarFetchJoinedExposesSoftware(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	reg := &patchRegistrar{db: db}

	rows := sqlmock.NewRows([]string{"id", "version_id", "software_id", "name", "stored_filename", "original_filename", "file_size", "mime_type", "is_external", "external_url", "created_by", "updated_by", "created_at", "updated_at", "version_number", "software_name", "uploader_name"}).
		AddRow("patch-1", "ver-1", "sw-1", "Hotfix", "abc.zip", "hotfix.zip", 2048, "application/zip", false, nil, nil, nil, time.Now(), time.Now(), "1.2.3", "Editor", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM patches p")).
		WithArgs("patch-1").
		WillReturnRows(rows)

	detail, err := reg.FetchJoined(context.Background(), "patch-1")
	require.NoError(t, err)
	require.Equal(t, models.KindPatch, detail.Kind)
	require.NotNil(t, detail.SoftwareID)
	require.Equal(t, "sw-1", *detail.SoftwareID)
	require.NotNil(t, detail.VersionNumber)
	require.Equal(t, "1.2.3", *detail.VersionNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRegistrarListScopesToSoftware(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	reg := &documentRegistrar{db: db}

	rows := sqlmock.NewRows([]string{"id", "software_id", "category_id", "name", "stored_filename", "original_filename", "file_size", "mime_type", "is_external", "external_url", "created_by", "updated_by", "created_at", "updated_at", "software_name", "category_name", "uploader_name"}).
		AddRow("doc-1", "sw-1", nil, "Manual", "abc.pdf", "manual.pdf", 9, "application/pdf", false, nil, nil, nil, time.Now(), time.Now(), "Editor", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.software_id = $1 ORDER BY d.created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("sw-1", 50, 0).
		WillReturnRows(rows)

	items, err := reg.List(context.Background(), "sw-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, models.KindDocument, items[0].Kind)
	require.Equal(t, "doc-1", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMiscFileRegistrarListWithoutFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	reg := &miscFileRegistrar{db: db}

	rows := sqlmock.NewRows([]string{"id", "software_id", "name", "stored_filename", "original_filename", "file_size", "mime_type", "is_external", "external_url", "created_by", "updated_by", "created_at", "updated_at", "software_name", "uploader_name"})
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY m.created_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(50, 0).
		WillReturnRows(rows)

	items, err := reg.List(context.Background(), "", -5, -1)
	require.NoError(t, err)
	require.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(context.DeadlineExceeded))
	require.False(t, IsUniqueViolation(nil))
}
