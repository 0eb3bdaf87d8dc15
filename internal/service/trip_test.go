package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/service"
)

func tripFixture() domain.Trip {
	return domain.Trip{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		PickupAddress:       "1 Home St",
		DropoffAddress:      "2 Clinic Rd",
		ScheduledPickupTime: time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC),
		TripType:            domain.TripTypeOneWay,
		Status:              domain.TripStatusScheduled,
	}
}

func findTrip(trip domain.Trip) *mockTripRepo {
	return &mockTripRepo{
		getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
			if id != trip.ID {
				return domain.Trip{}, domain.ErrNotFound
			}
			return trip, nil
		},
	}
}

// ---- List ------------------------------------------------------------------

func TestTripService_List(t *testing.T) {
	var gotFilter domain.TripFilter
	r := &mockTripRepo{
		listPaged: func(_ context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
			gotFilter = f
			assert.Equal(t, 2, p.Page)
			return []domain.Trip{tripFixture()}, 21, nil
		},
	}
	svc := service.NewTripService(r, allow())

	trips, total, err := svc.List(context.Background(), principal,
		domain.TripFilter{OrganizationID: orgID}, domain.PaginationParams{Page: 2, Limit: 20})

	require.NoError(t, err)
	assert.Len(t, trips, 1)
	assert.Equal(t, int64(21), total)
	assert.Equal(t, orgID, gotFilter.OrganizationID)
}

func TestTripService_List_EmptyIsNonNil(t *testing.T) {
	r := &mockTripRepo{
		listPaged: func(context.Context, domain.TripFilter, domain.PaginationParams) ([]domain.Trip, int64, error) {
			return nil, 0, nil
		},
	}
	trips, _, err := service.NewTripService(r, allow()).List(context.Background(), principal,
		domain.TripFilter{OrganizationID: orgID}, domain.NewPaginationParams(nil, nil))

	require.NoError(t, err)
	assert.NotNil(t, trips)
	assert.Empty(t, trips)
}

func TestTripService_List_InvertedWindow(t *testing.T) {
	from := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	_, _, err := service.NewTripService(&mockTripRepo{}, allow()).List(context.Background(), principal,
		domain.TripFilter{OrganizationID: orgID, From: &from, To: &to}, domain.NewPaginationParams(nil, nil))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTripService_List_Forbidden(t *testing.T) {
	_, _, err := service.NewTripService(&mockTripRepo{}, deny()).List(context.Background(), principal,
		domain.TripFilter{OrganizationID: orgID}, domain.NewPaginationParams(nil, nil))

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// ---- GetByID ---------------------------------------------------------------

func TestTripService_GetByID(t *testing.T) {
	want := tripFixture()
	var checked domain.Permission
	authz := &mockAuthz{require: func(_ context.Context, _ domain.Principal, perm domain.Permission, org uuid.UUID) error {
		checked = perm
		assert.Equal(t, want.OrganizationID, org)
		return nil
	}}

	got, err := service.NewTripService(findTrip(want), authz).GetByID(context.Background(), principal, want.ID)

	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, domain.PermTripsRead, checked)
}

func TestTripService_GetByID_NotFound(t *testing.T) {
	_, err := service.NewTripService(findTrip(tripFixture()), allow()).GetByID(context.Background(), principal, uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- UpdateStatus ----------------------------------------------------------

func TestTripService_UpdateStatus(t *testing.T) {
	trip := tripFixture()
	r := findTrip(trip)
	r.updateStatus = func(_ context.Context, id uuid.UUID, st domain.TripStatus) (domain.Trip, error) {
		trip.Status = st
		return trip, nil
	}

	got, err := service.NewTripService(r, allow()).UpdateStatus(context.Background(), principal, trip.ID, "in_progress")

	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusInProgress, got.Status)
}

func TestTripService_UpdateStatus_UnknownStatus(t *testing.T) {
	trip := tripFixture()

	_, err := service.NewTripService(findTrip(trip), allow()).UpdateStatus(context.Background(), principal, trip.ID, "teleported")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTripService_UpdateStatus_Forbidden(t *testing.T) {
	trip := tripFixture()

	_, err := service.NewTripService(findTrip(trip), deny()).UpdateStatus(context.Background(), principal, trip.ID, "completed")

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// ---- Delete ----------------------------------------------------------------

func TestTripService_Delete(t *testing.T) {
	trip := tripFixture()
	deleted := false
	r := findTrip(trip)
	r.delete = func(_ context.Context, id uuid.UUID) error {
		deleted = id == trip.ID
		return nil
	}

	require.NoError(t, service.NewTripService(r, allow()).Delete(context.Background(), principal, trip.ID))
	assert.True(t, deleted)
}

func TestTripService_Delete_RepoError(t *testing.T) {
	trip := tripFixture()
	repoErr := errors.New("db exploded")
	r := findTrip(trip)
	r.delete = func(context.Context, uuid.UUID) error { return repoErr }

	err := service.NewTripService(r, allow()).Delete(context.Background(), principal, trip.ID)

	// Repo errors are wrapped, not replaced.
	assert.ErrorIs(t, err, repoErr)
}
