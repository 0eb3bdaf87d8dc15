package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/recurrence"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/telemetry"
)

// Rider selection types accepted by CreateRecurringTripInput.
const (
	SelectionIndividual = "individual"
	SelectionGroup      = "group"
)

// CreateRecurringTripInput is the request to set up a weekly series.
// DaysOfWeek may name several days; each becomes its own template.
type CreateRecurringTripInput struct {
	OrganizationID uuid.UUID
	SelectionType  string
	ClientID       *uuid.UUID
	ClientGroupID  *uuid.UUID
	PickupAddress  string
	DropoffAddress string
	ScheduledTime  string
	Frequency      string
	DaysOfWeek     []string
	DurationWeeks  int
	TripType       string
	Nickname       string
}

// CreateRecurringTripResult reports what Create persisted.
type CreateRecurringTripResult struct {
	Templates    []domain.RecurringTrip
	TripsCreated int
}

// RecurringTripService creates weekly templates, expands them into trip
// instances, and applies series-wide deletes and edits.
type RecurringTripService struct {
	tx        repo.Transactor
	templates repo.RecurringTripRepo
	authz     Authorizer
	metrics   *telemetry.Metrics
	loc       *time.Location
	now       func() time.Time
}

// NewRecurringTripService constructs a RecurringTripService. Times of day are
// interpreted in loc. metrics may be nil.
func NewRecurringTripService(tx repo.Transactor, templates repo.RecurringTripRepo, authz Authorizer, metrics *telemetry.Metrics, loc *time.Location, now func() time.Time) *RecurringTripService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &RecurringTripService{tx: tx, templates: templates, authz: authz, metrics: metrics, loc: loc, now: now}
}

// seriesPlan is a validated CreateRecurringTripInput.
type seriesPlan struct {
	days         []time.Weekday
	hour, minute int
	timeOfDay    string
	tripType     domain.TripType
}

// Create validates in, then inserts one template per requested day together
// with every future instance of it, all in one transaction.
func (s *RecurringTripService) Create(ctx context.Context, p domain.Principal, in CreateRecurringTripInput) (CreateRecurringTripResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "recurring.create",
		trace.WithAttributes(attribute.String("organization.id", in.OrganizationID.String())))
	defer span.End()

	plan, err := validateCreate(in)
	if err != nil {
		return CreateRecurringTripResult{}, err
	}
	if err := s.authz.Require(ctx, p, domain.PermRecurringManage, in.OrganizationID); err != nil {
		return CreateRecurringTripResult{}, fmt.Errorf("service.RecurringTripService.Create: %w", err)
	}

	now := s.now()
	var res CreateRecurringTripResult
	err = s.tx.WithinTx(ctx, func(r repo.Repos) error {
		res = CreateRecurringTripResult{}
		groupName, err := resolveRider(ctx, r.Clients, in)
		if err != nil {
			return err
		}
		for _, day := range plan.days {
			tmpl, err := r.Templates.Create(ctx, domain.RecurringTrip{
				OrganizationID: in.OrganizationID,
				ClientID:       in.ClientID,
				ClientGroupID:  in.ClientGroupID,
				DayOfWeek:      day,
				ScheduledTime:  plan.timeOfDay,
				PickupAddress:  strings.TrimSpace(in.PickupAddress),
				DropoffAddress: strings.TrimSpace(in.DropoffAddress),
				TripType:       plan.tripType,
				DurationWeeks:  in.DurationWeeks,
				Nickname:       strings.TrimSpace(in.Nickname),
				IsActive:       true,
				CreatedBy:      createdBy(p),
			})
			if err != nil {
				return err
			}
			pickups, err := recurrence.Expand(recurrence.Template{
				DayOfWeek: day,
				Hour:      plan.hour,
				Minute:    plan.minute,
				Weeks:     in.DurationWeeks,
			}, now, s.loc)
			if err != nil {
				return err
			}
			if len(pickups) > 0 {
				created, err := r.Trips.CreateMany(ctx, instancesOf(tmpl, groupName, pickups))
				if err != nil {
					return err
				}
				res.TripsCreated += len(created)
			}
			res.Templates = append(res.Templates, tmpl)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return CreateRecurringTripResult{}, fmt.Errorf("service.RecurringTripService.Create: %w", err)
	}

	s.metrics.TripsCreated(ctx, domain.TripSourceRecurring, res.TripsCreated)
	slog.InfoContext(ctx, "recurring trips created",
		"organization_id", in.OrganizationID,
		"templates", len(res.Templates),
		"trips", res.TripsCreated,
	)
	return res, nil
}

// Get returns one template.
func (s *RecurringTripService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.RecurringTrip, error) {
	tmpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return domain.RecurringTrip{}, fmt.Errorf("service.RecurringTripService.Get: %w", err)
	}
	if err := s.authz.Require(ctx, p, domain.PermTripsRead, tmpl.OrganizationID); err != nil {
		return domain.RecurringTrip{}, fmt.Errorf("service.RecurringTripService.Get: %w", err)
	}
	return tmpl, nil
}

// Delete removes trips from a series and returns how many were deleted.
//
// ScopeSingle deletes instanceID, which must belong to the template.
// ScopeAllFuture deactivates the template and deletes every instance whose
// pickup is at or after now; past instances are kept. The template is
// deactivated even when no instance matches.
func (s *RecurringTripService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID) (int64, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "recurring.delete",
		trace.WithAttributes(attribute.String("recurring_trip.id", id.String()), attribute.String("scope", string(scope))))
	defer span.End()

	if err := requireInstance(scope, instanceID); err != nil {
		return 0, err
	}

	now := s.now()
	var deleted int64
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		if err := s.authorizeTemplate(ctx, r.Templates, p, id); err != nil {
			return err
		}
		if scope == domain.ScopeSingle {
			if err := r.Trips.DeleteInstance(ctx, id, *instanceID); err != nil {
				return err
			}
			deleted = 1
			return nil
		}
		if err := r.Templates.Deactivate(ctx, id); err != nil {
			return err
		}
		n, err := r.Trips.DeleteFuture(ctx, id, now)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("service.RecurringTripService.Delete: %w", err)
	}

	slog.InfoContext(ctx, "recurring trips deleted", "recurring_trip_id", id, "scope", scope, "deleted", deleted)
	return deleted, nil
}

// Modify patches trips in a series and returns how many instances changed.
//
// ScopeSingle patches instanceID only. ScopeAllFuture patches the template
// and every instance whose pickup is at or after now. A new ScheduledTime
// keeps each instance's date and replaces its time of day.
func (s *RecurringTripService) Modify(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID, u domain.TripUpdates) (int64, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "recurring.modify",
		trace.WithAttributes(attribute.String("recurring_trip.id", id.String()), attribute.String("scope", string(scope))))
	defer span.End()

	if err := requireInstance(scope, instanceID); err != nil {
		return 0, err
	}
	u, err := normalizeUpdates(u)
	if err != nil {
		return 0, err
	}

	now := s.now()
	tz := s.loc.String()
	var updated int64
	err = s.tx.WithinTx(ctx, func(r repo.Repos) error {
		if err := s.authorizeTemplate(ctx, r.Templates, p, id); err != nil {
			return err
		}
		if scope == domain.ScopeSingle {
			if err := r.Trips.PatchInstance(ctx, id, *instanceID, u, tz); err != nil {
				return err
			}
			updated = 1
			return nil
		}
		if _, err := r.Templates.Patch(ctx, id, u); err != nil {
			return err
		}
		n, err := r.Trips.PatchFuture(ctx, id, now, u, tz)
		if err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("service.RecurringTripService.Modify: %w", err)
	}

	slog.InfoContext(ctx, "recurring trips modified", "recurring_trip_id", id, "scope", scope, "updated", updated)
	return updated, nil
}

func (s *RecurringTripService) authorizeTemplate(ctx context.Context, templates repo.RecurringTripRepo, p domain.Principal, id uuid.UUID) error {
	tmpl, err := templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.authz.Require(ctx, p, domain.PermRecurringManage, tmpl.OrganizationID)
}

func validateCreate(in CreateRecurringTripInput) (seriesPlan, error) {
	var plan seriesPlan

	switch in.SelectionType {
	case SelectionIndividual:
		if in.ClientID == nil || in.ClientGroupID != nil {
			return plan, fmt.Errorf("%w: individual trips need clientId and no clientGroupId", domain.ErrValidation)
		}
	case SelectionGroup:
		if in.ClientGroupID == nil || in.ClientID != nil {
			return plan, fmt.Errorf("%w: group trips need clientGroupId and no clientId", domain.ErrValidation)
		}
	default:
		return plan, fmt.Errorf("%w: selectionType must be individual or group", domain.ErrValidation)
	}
	if in.OrganizationID == uuid.Nil {
		return plan, fmt.Errorf("%w: organizationId is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.PickupAddress) == "" || strings.TrimSpace(in.DropoffAddress) == "" {
		return plan, fmt.Errorf("%w: pickup and dropoff addresses are required", domain.ErrValidation)
	}
	if f := strings.ToLower(strings.TrimSpace(in.Frequency)); f != "" && f != "weekly" {
		return plan, fmt.Errorf("%w: only weekly frequency is supported", domain.ErrValidation)
	}
	if in.DurationWeeks < 1 || in.DurationWeeks > recurrence.MaxWeeks {
		return plan, fmt.Errorf("%w: duration must be between 1 and %d weeks", domain.ErrValidation, recurrence.MaxWeeks)
	}

	hour, minute, err := recurrence.ParseTimeOfDay(in.ScheduledTime)
	if err != nil {
		return plan, err
	}
	plan.hour, plan.minute = hour, minute
	plan.timeOfDay = fmt.Sprintf("%02d:%02d", hour, minute)

	if plan.tripType, err = domain.ParseTripType(in.TripType); err != nil {
		return plan, err
	}

	if len(in.DaysOfWeek) == 0 {
		return plan, fmt.Errorf("%w: at least one day of week is required", domain.ErrValidation)
	}
	seen := make(map[time.Weekday]bool, len(in.DaysOfWeek))
	for _, name := range in.DaysOfWeek {
		day, err := recurrence.ParseDay(name)
		if err != nil {
			return plan, err
		}
		if !seen[day] {
			seen[day] = true
			plan.days = append(plan.days, day)
		}
	}
	return plan, nil
}

// resolveRider checks that the selected client or group belongs to the
// organization and returns the group display name to snapshot, if any.
func resolveRider(ctx context.Context, clients repo.ClientRepo, in CreateRecurringTripInput) (string, error) {
	if in.ClientGroupID != nil {
		g, err := clients.GetGroup(ctx, *in.ClientGroupID)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && g.OrganizationID != in.OrganizationID) {
			return "", fmt.Errorf("%w: client group %s not found in organization", domain.ErrValidation, *in.ClientGroupID)
		}
		if err != nil {
			return "", err
		}
		return g.Name, nil
	}
	c, err := clients.GetByID(ctx, *in.ClientID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && c.OrganizationID != in.OrganizationID) {
		return "", fmt.Errorf("%w: client %s not found in organization", domain.ErrValidation, *in.ClientID)
	}
	return "", err
}

func instancesOf(tmpl domain.RecurringTrip, groupName string, pickups []time.Time) []domain.Trip {
	trips := make([]domain.Trip, 0, len(pickups))
	for _, at := range pickups {
		templateID := tmpl.ID
		trips = append(trips, domain.Trip{
			OrganizationID:      tmpl.OrganizationID,
			ClientID:            tmpl.ClientID,
			ClientGroupID:       tmpl.ClientGroupID,
			GroupName:           groupName,
			PickupAddress:       tmpl.PickupAddress,
			DropoffAddress:      tmpl.DropoffAddress,
			ScheduledPickupTime: at,
			TripType:            tmpl.TripType,
			Status:              domain.TripStatusScheduled,
			RecurringTripID:     &templateID,
			Source:              domain.TripSourceRecurring,
		})
	}
	return trips
}

func createdBy(p domain.Principal) *uuid.UUID {
	if p.UserID == uuid.Nil {
		return nil
	}
	id := p.UserID
	return &id
}

func requireInstance(scope domain.Scope, instanceID *uuid.UUID) error {
	switch scope {
	case domain.ScopeSingle:
		if instanceID == nil {
			return fmt.Errorf("%w: tripInstanceId is required for single scope", domain.ErrValidation)
		}
	case domain.ScopeAllFuture:
	default:
		_, err := domain.ParseScope(string(scope))
		return err
	}
	return nil
}

// normalizeUpdates rejects empty or malformed patches and canonicalises the
// time of day to HH:MM.
func normalizeUpdates(u domain.TripUpdates) (domain.TripUpdates, error) {
	if u.IsEmpty() {
		return u, fmt.Errorf("%w: updates must change at least one field", domain.ErrValidation)
	}
	for _, addr := range []*string{u.PickupAddress, u.DropoffAddress} {
		if addr != nil && strings.TrimSpace(*addr) == "" {
			return u, fmt.Errorf("%w: addresses cannot be blank", domain.ErrValidation)
		}
	}
	if u.ScheduledTime != nil {
		hour, minute, err := recurrence.ParseTimeOfDay(*u.ScheduledTime)
		if err != nil {
			return u, err
		}
		hhmm := fmt.Sprintf("%02d:%02d", hour, minute)
		u.ScheduledTime = &hhmm
	}
	if u.TripType != nil {
		if _, err := domain.ParseTripType(string(*u.TripType)); err != nil {
			return u, err
		}
	}
	return u, nil
}
