package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/repo"
)

// ExportService assembles the daily trip manifest for an organization.
type ExportService struct {
	trips repo.TripRepo
	authz Authorizer
	loc   *time.Location
}

// NewExportService constructs an ExportService. Manifest days are calendar
// days in loc.
func NewExportService(trips repo.TripRepo, authz Authorizer, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{trips: trips, authz: authz, loc: loc}
}

// Manifest returns one ManifestRow per trip picked up on day, ordered by
// pickup time. Always returns a non-nil slice.
func (s *ExportService) Manifest(ctx context.Context, p domain.Principal, orgID uuid.UUID, day time.Time) ([]domain.ManifestRow, error) {
	if err := s.authz.Require(ctx, p, domain.PermTripsRead, orgID); err != nil {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
	}
	from, to := DayBounds(day, s.loc)
	rows, err := s.trips.Manifest(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
	}
	if rows == nil {
		return []domain.ManifestRow{}, nil
	}
	return rows, nil
}

// DayBounds returns midnight in loc of day's calendar date (read in day's own
// location) and the following midnight. Across a DST change the span is 23
// or 25 hours.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}
