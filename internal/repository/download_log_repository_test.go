package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/depot-labs/depot-api/internal/models"
)

func TestDownloadLogRepositoryInsertFillsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDownloadLogRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO download_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.DownloadLogEntry{FileID: "file-1", FileType: models.KindDocument, IPAddress: "10.0.0.1"}
	require.NoError(t, repo.Insert(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadLogRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDownloadLogRepository(db)
	rows := sqlmock.NewRows([]string{"id", "file_id", "file_type", "user_id", "ip_address", "created_at"}).
		AddRow("log-1", "file-1", "document", "user-42", "10.0.0.1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE file_id = $1 AND file_type = $2 AND user_id = $3")).
		WithArgs("file-1", "document", "user-42").
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.DownloadLogFilter{
		FileID:   "file-1",
		FileType: models.KindDocument,
		UserID:   "user-42",
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "log-1", entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadLogRepositoryListClampsLimit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDownloadLogRepository(db)
	rows := sqlmock.NewRows([]string{"id", "file_id", "file_type", "user_id", "ip_address", "created_at"})
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 100 OFFSET 0")).WillReturnRows(rows)

	_, err := repo.List(context.Background(), models.DownloadLogFilter{Limit: 999999})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
