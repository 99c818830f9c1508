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

func TestVersionRepositoryInsertFillsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	v := &models.Version{SoftwareID: "sw-1", VersionNumber: "9.9.9"}
	require.NoError(t, repo.Insert(context.Background(), v))
	require.NotEmpty(t, v.ID)
	require.False(t, v.CreatedAt.IsZero())
	require.False(t, v.ReleaseDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryFindBySoftwareAndNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "software_id", "version_number", "release_date", "notes", "created_by", "created_at"}).
		AddRow("ver-1", "sw-1", "1.2.3", time.Now(), "", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM versions WHERE software_id = $1 AND version_number = $2")).
		WithArgs("sw-1", "1.2.3").
		WillReturnRows(rows)

	v, err := repo.FindBySoftwareAndNumber(context.Background(), "sw-1", "1.2.3")
	require.NoError(t, err)
	require.Equal(t, "ver-1", v.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
