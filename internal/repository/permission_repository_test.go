package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/depot-labs/depot-api/internal/models"
)

func TestPermissionRepositoryFindReturnsExplicitRule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	rows := sqlmock.NewRows([]string{"user_id", "file_id", "file_type", "can_view", "can_download", "updated_by", "updated_at"}).
		AddRow("user-42", "file-1", "document", true, false, "admin-1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM file_permissions WHERE user_id = $1 AND file_id = $2 AND file_type = $3")).
		WithArgs("user-42", "file-1", models.KindDocument).
		WillReturnRows(rows)

	perm, err := repo.Find(context.Background(), "user-42", "file-1", models.KindDocument)
	require.NoError(t, err)
	require.NotNil(t, perm.CanDownload)
	require.False(t, *perm.CanDownload)
	require.NotNil(t, perm.CanView)
	require.True(t, *perm.CanView)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryFindNoRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM file_permissions")).
		WithArgs("user-42", "file-1", models.KindPatch).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "user-42", "file-1", models.KindPatch)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPermissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO file_permissions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deny := false
	perm := &models.FilePermission{
		UserID:      "user-42",
		FileID:      "file-1",
		FileType:    models.KindDocument,
		CanDownload: &deny,
	}
	require.NoError(t, repo.Upsert(context.Background(), perm))
	require.False(t, perm.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
