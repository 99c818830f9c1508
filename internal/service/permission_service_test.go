package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

type permissionStoreStub struct {
	rows    map[string]*models.FilePermission
	findErr error
	queried int
}

func newPermissionStoreStub() *permissionStoreStub {
	return &permissionStoreStub{rows: make(map[string]*models.FilePermission)}
}

func permKey(userID, fileID string, fileType models.ContentKind) string {
	return userID + "|" + fileID + "|" + string(fileType)
}

func (s *permissionStoreStub) Find(ctx context.Context, userID, fileID string, fileType models.ContentKind) (*models.FilePermission, error) {
	s.queried++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if perm, ok := s.rows[permKey(userID, fileID, fileType)]; ok {
		copy := *perm
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *permissionStoreStub) Upsert(ctx context.Context, perm *models.FilePermission) error {
	s.rows[permKey(perm.UserID, perm.FileID, perm.FileType)] = perm
	return nil
}

func (s *permissionStoreStub) ListByFile(ctx context.Context, fileID string, fileType models.ContentKind) ([]models.FilePermission, error) {
	var out []models.FilePermission
	for _, perm := range s.rows {
		if perm.FileID == fileID && perm.FileType == fileType {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (s *permissionStoreStub) Delete(ctx context.Context, userID, fileID string, fileType models.ContentKind) error {
	delete(s.rows, permKey(userID, fileID, fileType))
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, log)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func TestPermissionServiceAnonymousAlwaysAllowed(t *testing.T) {
	store := newPermissionStoreStub()
	// Even an explicit deny row for some user never affects anonymous callers.
	store.rows[permKey("user-42", "file-1", models.KindDocument)] = &models.FilePermission{
		UserID: "user-42", FileID: "file-1", FileType: models.KindDocument, CanDownload: boolPtr(false),
	}
	svc := NewPermissionService(store, nil, nil, nil)

	allowed, err := svc.CanDownload(context.Background(), nil, "file-1", models.KindDocument)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, store.queried)
}

func TestPermissionServiceDefaultAllowWithoutRow(t *testing.T) {
	svc := NewPermissionService(newPermissionStoreStub(), nil, nil, nil)

	allowed, err := svc.CanDownload(context.Background(), strPtr("user-42"), "file-1", models.KindDocument)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestPermissionServiceEvaluatesSparseFlags(t *testing.T) {
	store := newPermissionStoreStub()
	store.rows[permKey("user-42", "file-1", models.KindDocument)] = &models.FilePermission{
		UserID: "user-42", FileID: "file-1", FileType: models.KindDocument,
		CanView:     nil,             // unset: allow
		CanDownload: boolPtr(false),  // explicit deny
	}
	store.rows[permKey("user-43", "file-1", models.KindDocument)] = &models.FilePermission{
		UserID: "user-43", FileID: "file-1", FileType: models.KindDocument,
		CanView:     boolPtr(false),
		CanDownload: boolPtr(true),
	}
	svc := NewPermissionService(store, nil, nil, nil)

	canView, err := svc.CanView(context.Background(), strPtr("user-42"), "file-1", models.KindDocument)
	require.NoError(t, err)
	require.True(t, canView)

	canDownload, err := svc.CanDownload(context.Background(), strPtr("user-42"), "file-1", models.KindDocument)
	require.NoError(t, err)
	require.False(t, canDownload)

	canView, err = svc.CanView(context.Background(), strPtr("user-43"), "file-1", models.KindDocument)
	require.NoError(t, err)
	require.False(t, canView)

	canDownload, err = svc.CanDownload(context.Background(), strPtr("user-43"), "file-1", models.KindDocument)
	require.NoError(t, err)
	require.True(t, canDownload)
}

func TestPermissionServiceEvaluateStoreFailure(t *testing.T) {
	store := newPermissionStoreStub()
	store.findErr = context.DeadlineExceeded
	svc := NewPermissionService(store, nil, nil, nil)

	_, err := svc.CanDownload(context.Background(), strPtr("user-42"), "file-1", models.KindDocument)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestPermissionServiceUpsertRecordsAudit(t *testing.T) {
	store := newPermissionStoreStub()
	audit := &auditStub{}
	svc := NewPermissionService(store, audit, nil, nil)

	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	perm, err := svc.Upsert(context.Background(), dto.UpsertPermissionRequest{
		UserID:      "9f4cbb3e-61b2-4bfb-9a4f-0d2f5a9f2a01",
		FileID:      "37b7c6fa-3f52-4a6e-8f0b-24d41a0f9f4c",
		FileType:    "document",
		CanDownload: boolPtr(false),
	}, actor, "10.0.0.1", "go-test")
	require.NoError(t, err)
	require.NotNil(t, perm.UpdatedBy)
	require.Equal(t, "admin-1", *perm.UpdatedBy)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionPermissionUpsert, audit.logs[0].Action)

	// The rule now denies on the evaluation path too.
	allowed, err := svc.CanDownload(context.Background(), strPtr("9f4cbb3e-61b2-4bfb-9a4f-0d2f5a9f2a01"), "37b7c6fa-3f52-4a6e-8f0b-24d41a0f9f4c", models.KindDocument)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestPermissionServiceUpsertRejectsUnknownKind(t *testing.T) {
	svc := NewPermissionService(newPermissionStoreStub(), nil, nil, nil)

	_, err := svc.Upsert(context.Background(), dto.UpsertPermissionRequest{
		UserID:   "9f4cbb3e-61b2-4bfb-9a4f-0d2f5a9f2a01",
		FileID:   "37b7c6fa-3f52-4a6e-8f0b-24d41a0f9f4c",
		FileType: "binary_blob",
	}, nil, "", "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPermissionServiceRemoveRestoresDefaultAllow(t *testing.T) {
	store := newPermissionStoreStub()
	store.rows[permKey("user-42", "file-1", models.KindDocument)] = &models.FilePermission{
		UserID: "user-42", FileID: "file-1", FileType: models.KindDocument, CanDownload: boolPtr(false),
	}
	svc := NewPermissionService(store, nil, nil, nil)

	require.NoError(t, svc.Remove(context.Background(), "user-42", "file-1", "document"))

	allowed, err := svc.CanDownload(context.Background(), strPtr("user-42"), "file-1", models.KindDocument)
	require.NoError(t, err)
	require.True(t, allowed)
}
