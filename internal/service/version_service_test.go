package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
)

type versionStoreStub struct {
	byID      map[string]*models.Version
	byNatural map[string]*models.Version
	insertErr error
	inserted  []*models.Version

	// lookupMisses makes the first N natural-key lookups miss, simulating a
	// row committed by a concurrent creator between lookup and insert.
	lookupMisses int
}

func newVersionStoreStub() *versionStoreStub {
	return &versionStoreStub{
		byID:      make(map[string]*models.Version),
		byNatural: make(map[string]*models.Version),
	}
}

func naturalKey(softwareID, number string) string {
	return softwareID + "|" + number
}

func (s *versionStoreStub) FindByID(ctx context.Context, id string) (*models.Version, error) {
	if v, ok := s.byID[id]; ok {
		copy := *v
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *versionStoreStub) FindBySoftwareAndNumber(ctx context.Context, softwareID, number string) (*models.Version, error) {
	if s.lookupMisses > 0 {
		s.lookupMisses--
		return nil, sql.ErrNoRows
	}
	if v, ok := s.byNatural[naturalKey(softwareID, number)]; ok {
		copy := *v
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *versionStoreStub) Insert(ctx context.Context, v *models.Version) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if v.ID == "" {
		v.ID = "ver-new"
	}
	s.inserted = append(s.inserted, v)
	s.byID[v.ID] = v
	s.byNatural[naturalKey(v.SoftwareID, v.VersionNumber)] = v
	return nil
}

func (s *versionStoreStub) ListBySoftware(ctx context.Context, softwareID string) ([]models.Version, error) {
	var out []models.Version
	for _, v := range s.byNatural {
		if v.SoftwareID == softwareID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func TestVersionServiceResolveByID(t *testing.T) {
	store := newVersionStoreStub()
	store.byID["ver-1"] = &models.Version{ID: "ver-1", SoftwareID: "sw-1", VersionNumber: "1.0.0"}
	svc := NewVersionService(store, nil)

	v, err := svc.Resolve(context.Background(), "sw-1", "ver-1", "", nil)
	require.NoError(t, err)
	require.Equal(t, "ver-1", v.ID)
	require.Empty(t, store.inserted)
}

func TestVersionServiceResolveByIDWrongSoftware(t *testing.T) {
	store := newVersionStoreStub()
	store.byID["ver-1"] = &models.Version{ID: "ver-1", SoftwareID: "sw-other", VersionNumber: "1.0.0"}
	svc := NewVersionService(store, nil)

	_, err := svc.Resolve(context.Background(), "sw-1", "ver-1", "", nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceResolveByIDUnknown(t *testing.T) {
	svc := NewVersionService(newVersionStoreStub(), nil)

	_, err := svc.Resolve(context.Background(), "sw-1", "ver-missing", "", nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceResolveTypedCreatesLazily(t *testing.T) {
	store := newVersionStoreStub()
	svc := NewVersionService(store, nil)

	v, err := svc.Resolve(context.Background(), "sw-1", "", "9.9.9", nil)
	require.NoError(t, err)
	require.Equal(t, "sw-1", v.SoftwareID)
	require.Equal(t, "9.9.9", v.VersionNumber)
	require.Len(t, store.inserted, 1)

	// The second resolution reuses the row.
	again, err := svc.Resolve(context.Background(), "sw-1", "", "9.9.9", nil)
	require.NoError(t, err)
	require.Equal(t, v.ID, again.ID)
	require.Len(t, store.inserted, 1)
}

func TestVersionServiceResolveTypedLosesRace(t *testing.T) {
	store := newVersionStoreStub()
	// The first lookup misses, the insert then hits the unique constraint
	// because a concurrent creator committed first, and the fallback lookup
	// adopts the winner's row.
	store.lookupMisses = 1
	store.insertErr = &pq.Error{Code: "23505"}
	store.byNatural[naturalKey("sw-1", "2.0.0")] = &models.Version{ID: "ver-winner", SoftwareID: "sw-1", VersionNumber: "2.0.0"}

	svc := NewVersionService(store, nil)
	v, err := svc.Resolve(context.Background(), "sw-1", "", "2.0.0", nil)
	require.NoError(t, err)
	require.Equal(t, "ver-winner", v.ID)
	require.Empty(t, store.inserted)
}

func TestVersionServiceResolveRequiresInput(t *testing.T) {
	svc := NewVersionService(newVersionStoreStub(), nil)

	_, err := svc.Resolve(context.Background(), "sw-1", "", "", nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
