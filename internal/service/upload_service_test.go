package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/internal/repository"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/storage"
)

type registrarStub struct {
	kind        models.ContentKind
	validateErr error
	insertErr   error
	inserted    []*models.ContentRecord
}

func (r *registrarStub) Kind() models.ContentKind { return r.kind }

func (r *registrarStub) ValidateMetadata(meta dto.UploadMetadata) error { return r.validateErr }

func (r *registrarStub) Insert(ctx context.Context, tx *sqlx.Tx, rec *models.ContentRecord) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("item-%d", len(r.inserted)+1)
	}
	rec.Kind = r.kind
	r.inserted = append(r.inserted, rec)
	return nil
}

func (r *registrarStub) FetchJoined(ctx context.Context, id string) (*models.ContentDetail, error) {
	for _, rec := range r.inserted {
		if rec.ID == id {
			return &models.ContentDetail{ContentRecord: *rec}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *registrarStub) FindByStoredName(ctx context.Context, storedName string) (*models.ContentRecord, error) {
	for _, rec := range r.inserted {
		if rec.StoredFilename != nil && *rec.StoredFilename == storedName {
			copy := *rec
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *registrarStub) List(ctx context.Context, softwareID string, limit, offset int) ([]models.ContentDetail, error) {
	var out []models.ContentDetail
	for _, rec := range r.inserted {
		if softwareID != "" && (rec.SoftwareID == nil || *rec.SoftwareID != softwareID) {
			continue
		}
		out = append(out, models.ContentDetail{ContentRecord: *rec})
	}
	return out, nil
}

func (r *registrarStub) Delete(ctx context.Context, id string) error {
	for i, rec := range r.inserted {
		if rec.ID == id {
			r.inserted = append(r.inserted[:i], r.inserted[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type registryStub struct {
	registrar *registrarStub
}

func (s *registryStub) For(kind models.ContentKind) (repository.ContentRegistrar, bool) {
	if s.registrar != nil && s.registrar.kind == kind {
		return s.registrar, true
	}
	return nil, false
}

type versionResolverStub struct {
	version *models.Version
	err     error
	calls   int
}

func (s *versionResolverStub) Resolve(ctx context.Context, softwareID, versionID, versionNumber string, actorID *string) (*models.Version, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.version, nil
}

type publisherStub struct {
	events []models.ItemCreatedEvent
}

func (s *publisherStub) PublishItemCreated(event models.ItemCreatedEvent) {
	s.events = append(s.events, event)
}

type uploadEnv struct {
	svc       *UploadService
	registrar *registrarStub
	versions  *versionResolverStub
	publisher *publisherStub
	audit     *auditStub
	mock      sqlmock.Sqlmock
	staging   string
	base      string
}

func newUploadEnv(t *testing.T, kind models.ContentKind, maxChunk int64) *uploadEnv {
	t.Helper()

	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	staging := t.TempDir()
	base := t.TempDir()
	stager, err := storage.NewChunkStore(staging)
	require.NoError(t, err)
	files, err := storage.NewFileStore(base)
	require.NoError(t, err)

	registrar := &registrarStub{kind: kind}
	versions := &versionResolverStub{version: &models.Version{ID: "ver-1", SoftwareID: "sw-1", VersionNumber: "1.2.3"}}
	publisher := &publisherStub{}
	audit := &auditStub{}

	svc := NewUploadService(db, &registryStub{registrar: registrar}, stager, files, versions, audit, publisher, nil, nil, nil, UploadConfig{MaxChunkBytes: maxChunk})
	return &uploadEnv{
		svc:       svc,
		registrar: registrar,
		versions:  versions,
		publisher: publisher,
		audit:     audit,
		mock:      mock,
		staging:   staging,
		base:      base,
	}
}

func chunkInput(kind models.ContentKind, uploadID, filename string, index, total int, payload string, meta dto.UploadMetadata) ChunkInput {
	return ChunkInput{
		ChunkUploadRequest: dto.ChunkUploadRequest{
			UploadID:       uploadID,
			ItemType:       string(kind),
			ChunkIndex:     index,
			TotalChunks:    total,
			UploadMetadata: meta,
		},
		OriginalFilename: filename,
		DeclaredMIME:     "application/pdf",
		Body:             strings.NewReader(payload),
		ClientIP:         "10.0.0.1",
		UserAgent:        "go-test",
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, path)
		}
		return nil
	})
	require.NoError(t, err)
	return names
}

func TestUploadServiceStagesAndCommitsDocument(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)
	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "User Manual"}

	for i, payload := range []string{"alpha", "beta"} {
		result, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-1", "manual.pdf", i, 3, payload, meta))
		require.NoError(t, err)
		require.False(t, result.Completed)
		require.Equal(t, i+1, result.Ack.Received)
		require.Equal(t, 3-i-1, result.Ack.Remaining)
	}

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	result, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-1", "manual.pdf", 2, 3, "gamma", meta))
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.NotNil(t, result.Item.StoredFilename)
	require.True(t, strings.HasSuffix(*result.Item.StoredFilename, ".pdf"))
	require.NotEqual(t, "manual.pdf", *result.Item.StoredFilename)

	stored := dirEntries(t, env.base)
	require.Len(t, stored, 1)
	require.Equal(t, filepath.Join(env.base, "documents", *result.Item.StoredFilename), stored[0])

	content, err := os.ReadFile(stored[0])
	require.NoError(t, err)
	require.Equal(t, "alphabetagamma", string(content))
	require.EqualValues(t, len("alphabetagamma"), result.Item.FileSize)

	require.Empty(t, dirEntries(t, env.staging), "staging must be clean after commit")

	require.Len(t, env.publisher.events, 1)
	require.Equal(t, result.Item.ID, env.publisher.events[0].ItemID)
	require.Equal(t, "sw-1", env.publisher.events[0].SoftwareID)

	require.Len(t, env.audit.logs, 1)
	require.Equal(t, models.AuditActionUploadFinalized, env.audit.logs[0].Action)

	require.Zero(t, env.versions.calls, "documents never resolve a version")
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUploadServiceRejectsDuplicateChunk(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)
	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "Manual"}

	_, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-2", "manual.pdf", 0, 3, "alpha", meta))
	require.NoError(t, err)

	_, err = env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-2", "manual.pdf", 0, 3, "alpha", meta))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// The staged prefix is untouched by the rejected duplicate.
	content, readErr := os.ReadFile(filepath.Join(env.staging, "up-2_manual.pdf.part"))
	require.NoError(t, readErr)
	require.Equal(t, "alpha", string(content))
}

func TestUploadServiceRejectsChunkIndexOutOfRange(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)

	_, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-3", "manual.pdf", 5, 3, "alpha", dto.UploadMetadata{}))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUploadServiceCleansUpOnMetadataFailure(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)
	env.registrar.validateErr = appErrors.Clone(appErrors.ErrValidation, "document name is required")

	_, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-4", "manual.pdf", 0, 2, "alpha", dto.UploadMetadata{}))
	require.NoError(t, err)

	_, err = env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-4", "manual.pdf", 1, 2, "beta", dto.UploadMetadata{}))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.Empty(t, dirEntries(t, env.staging), "failed finalize must clean staging")
	require.Empty(t, dirEntries(t, env.base), "nothing may reach canonical storage")
	require.Empty(t, env.registrar.inserted)
}

func TestUploadServiceCompensatesFailedInsert(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)
	env.registrar.insertErr = &pq.Error{Code: "23505"}
	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "Manual"}

	env.mock.ExpectBegin()
	env.mock.ExpectRollback()

	_, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-5", "manual.pdf", 0, 1, "alpha", meta))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrIntegrity.Code, appErrors.FromError(err).Code)

	require.Empty(t, dirEntries(t, env.base), "moved file must be deleted after a failed insert")
	require.Empty(t, dirEntries(t, env.staging))
	require.Empty(t, env.publisher.events)

	require.Len(t, env.audit.logs, 1)
	require.Equal(t, models.AuditActionUploadRolledBack, env.audit.logs[0].Action)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUploadServiceExternalLinkSkipsStorage(t *testing.T) {
	env := newUploadEnv(t, models.KindLinkFile, 0)
	meta := dto.UploadMetadata{
		SoftwareID:  "sw-1",
		Name:        "Mirror",
		Version:     "1.2.3",
		IsExternal:  true,
		ExternalURL: "https://mirror.example.com/pkg.zip",
	}

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	in := chunkInput(models.KindLinkFile, "up-6", "", 0, 1, "", meta)
	in.Body = nil
	result, err := env.svc.Ingest(context.Background(), in)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.True(t, result.Item.IsExternal)
	require.Nil(t, result.Item.StoredFilename)
	require.NotNil(t, result.Item.ExternalURL)
	require.Equal(t, meta.ExternalURL, *result.Item.ExternalURL)
	require.NotNil(t, result.Item.VersionID)
	require.Equal(t, "ver-1", *result.Item.VersionID)

	require.Empty(t, dirEntries(t, env.base))
	require.Equal(t, 1, env.versions.calls)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUploadServicePatchAttachesResolvedVersion(t *testing.T) {
	env := newUploadEnv(t, models.KindPatch, 0)
	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "Hotfix", Version: "9.9.9"}
	env.versions.version = &models.Version{ID: "ver-99", SoftwareID: "sw-1", VersionNumber: "9.9.9"}

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	result, err := env.svc.Ingest(context.Background(), chunkInput(models.KindPatch, "up-7", "hotfix.zip", 0, 1, "payload", meta))
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.NotNil(t, result.Item.VersionID)
	require.Equal(t, "ver-99", *result.Item.VersionID)
	require.Equal(t, 1, env.versions.calls)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUploadServiceDerivesExtensionFromMIME(t *testing.T) {
	env := newUploadEnv(t, models.KindMiscFile, 0)
	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "Installer"}

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	in := chunkInput(models.KindMiscFile, "up-8", "installer", 0, 1, "payload", meta)
	in.DeclaredMIME = "application/zip"
	result, err := env.svc.Ingest(context.Background(), in)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(*result.Item.StoredFilename, ".zip"))
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUploadServiceRejectsUnknownItemType(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)

	in := chunkInput(models.KindDocument, "up-9", "manual.pdf", 0, 1, "alpha", dto.UploadMetadata{})
	in.ItemType = "binary_blob"
	_, err := env.svc.Ingest(context.Background(), in)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// collisionKeeperStub reports every stored name as already occupied.
type collisionKeeperStub struct {
	promoted bool
}

func (k *collisionKeeperStub) Promote(srcPath, subdir, storedName string) (string, error) {
	k.promoted = true
	return "", nil
}

func (k *collisionKeeperStub) Exists(subdir, storedName string) bool { return true }

func (k *collisionKeeperStub) Size(subdir, storedName string) (int64, error) { return 0, nil }

func (k *collisionKeeperStub) Delete(subdir, storedName string) error { return nil }

func TestUploadServiceRefusesToOverwriteStoredName(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)
	keeper := &collisionKeeperStub{}
	stager, err := storage.NewChunkStore(env.staging)
	require.NoError(t, err)
	svc := NewUploadService(nil, &registryStub{registrar: env.registrar}, stager, keeper, env.versions, env.audit, env.publisher, nil, nil, nil, UploadConfig{})

	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "Manual"}
	_, err = svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-11", "manual.pdf", 0, 1, "alpha", meta))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStorage.Code, appErrors.FromError(err).Code)
	require.False(t, keeper.promoted, "an occupied stored name must never be overwritten")
	require.Empty(t, dirEntries(t, env.staging))
}

func TestUploadServiceRemoveDeletesRowAndFile(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)
	meta := dto.UploadMetadata{SoftwareID: "sw-1", Name: "Manual"}

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()
	result, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-12", "manual.pdf", 0, 1, "alpha", meta))
	require.NoError(t, err)
	require.Len(t, dirEntries(t, env.base), 1)

	err = env.svc.Remove(context.Background(), "document", result.Item.ID, &models.JWTClaims{UserID: "admin-1"}, "10.0.0.1", "go-test")
	require.NoError(t, err)

	require.Empty(t, env.registrar.inserted, "the database row is gone")
	require.Empty(t, dirEntries(t, env.base), "the stored file is gone with it")
	require.Equal(t, models.AuditActionItemDeleted, env.audit.logs[len(env.audit.logs)-1].Action)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUploadServiceRemoveUnknownItem(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 0)

	err := env.svc.Remove(context.Background(), "document", "no-such-id", nil, "", "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUploadServiceRejectsOversizedChunk(t *testing.T) {
	env := newUploadEnv(t, models.KindDocument, 4)

	_, err := env.svc.Ingest(context.Background(), chunkInput(models.KindDocument, "up-10", "manual.pdf", 0, 2, "exceeds", dto.UploadMetadata{}))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, dirEntries(t, env.staging), "poisoned partial must be removed")
}
