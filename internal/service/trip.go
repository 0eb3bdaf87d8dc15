// Package service contains the business logic for the NEMT dispatch API.
// Services validate inputs, enforce permissions and business rules, and
// orchestrate repo calls. No SQL lives here: services depend on repo
// interfaces, and multi-step writes go through repo.Transactor.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/repo"
)

// Authorizer checks that a principal holds a permission within an
// organization. *permission.Authorizer satisfies it.
type Authorizer interface {
	Require(ctx context.Context, p domain.Principal, perm domain.Permission, orgID uuid.UUID) error
}

// TripService implements business logic for individual trip operations.
type TripService struct {
	trips repo.TripRepo
	authz Authorizer
}

// NewTripService constructs a TripService backed by the provided TripRepo.
func NewTripService(trips repo.TripRepo, authz Authorizer) *TripService {
	return &TripService{trips: trips, authz: authz}
}

// List returns one page of an organization's trips ordered by pickup time,
// plus the total number of matching trips.
func (s *TripService) List(ctx context.Context, p domain.Principal, f domain.TripFilter, page domain.PaginationParams) ([]domain.Trip, int64, error) {
	if err := s.authz.Require(ctx, p, domain.PermTripsRead, f.OrganizationID); err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, fmt.Errorf("%w: from must be before to", domain.ErrValidation)
	}
	trips, total, err := s.trips.ListPaged(ctx, f, page)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, total, nil
}

// GetByID returns a single trip.
// Returns domain.ErrNotFound if no trip with that ID exists.
func (s *TripService) GetByID(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Trip, error) {
	return s.authorized(ctx, p, id, domain.PermTripsRead, "GetByID")
}

// UpdateStatus moves a trip to one of the fixed statuses in
// domain.TripStatuses. Transitions are not otherwise constrained.
func (s *TripService) UpdateStatus(ctx context.Context, p domain.Principal, id uuid.UUID, status string) (domain.Trip, error) {
	st, err := domain.ParseTripStatus(status)
	if err != nil {
		return domain.Trip{}, err
	}
	if _, err := s.authorized(ctx, p, id, domain.PermTripsUpdateStatus, "UpdateStatus"); err != nil {
		return domain.Trip{}, err
	}
	updated, err := s.trips.UpdateStatus(ctx, id, st)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateStatus: %w", err)
	}
	return updated, nil
}

// Delete removes a trip by ID.
func (s *TripService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if _, err := s.authorized(ctx, p, id, domain.PermTripsWrite, "Delete"); err != nil {
		return err
	}
	if err := s.trips.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	return nil
}

// authorized loads a trip and checks perm against its organization.
func (s *TripService) authorized(ctx context.Context, p domain.Principal, id uuid.UUID, perm domain.Permission, op string) (domain.Trip, error) {
	trip, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w", op, err)
	}
	if err := s.authz.Require(ctx, p, perm, trip.OrganizationID); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w", op, err)
	}
	return trip, nil
}
