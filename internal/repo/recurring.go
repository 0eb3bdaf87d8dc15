package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// RecurringTripRepo persists weekly trip templates. Templates are never
// deleted; Deactivate flips is_active instead.
type RecurringTripRepo interface {
	Create(ctx context.Context, t domain.RecurringTrip) (domain.RecurringTrip, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.RecurringTrip, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// Patch applies the template-level fields of u (addresses, time, trip type).
	Patch(ctx context.Context, id uuid.UUID, u domain.TripUpdates) (domain.RecurringTrip, error)
}

type pgRecurringTripRepo struct {
	db db
}

// NewRecurringTripRepo constructs a RecurringTripRepo backed by db.
func NewRecurringTripRepo(db db) RecurringTripRepo {
	return &pgRecurringTripRepo{db: db}
}

const recurringColumns = `id, organization_id, client_id, client_group_id, day_of_week,
	scheduled_time, pickup_address, dropoff_address, trip_type, duration_weeks,
	trip_nickname, is_active, created_by, created_at, updated_at`

func (r *pgRecurringTripRepo) Create(ctx context.Context, t domain.RecurringTrip) (domain.RecurringTrip, error) {
	q := `
		INSERT INTO recurring_trips (organization_id, client_id, client_group_id, day_of_week,
		                             scheduled_time, pickup_address, dropoff_address, trip_type,
		                             duration_weeks, trip_nickname, is_active, created_by)
		VALUES (@organization_id, @client_id, @client_group_id, @day_of_week,
		        @scheduled_time, @pickup_address, @dropoff_address, @trip_type,
		        @duration_weeks, @trip_nickname, true, @created_by)
		RETURNING ` + recurringColumns

	args := pgx.NamedArgs{
		"organization_id": t.OrganizationID,
		"client_id":       t.ClientID,
		"client_group_id": t.ClientGroupID,
		"day_of_week":     int16(t.DayOfWeek),
		"scheduled_time":  t.ScheduledTime,
		"pickup_address":  t.PickupAddress,
		"dropoff_address": t.DropoffAddress,
		"trip_type":       string(t.TripType),
		"duration_weeks":  t.DurationWeeks,
		"trip_nickname":   t.Nickname,
		"created_by":      t.CreatedBy,
	}

	created, err := scanRecurringTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.RecurringTrip{}, fmt.Errorf("repo.RecurringTripRepo.Create: %w", err)
	}
	return created, nil
}

func (r *pgRecurringTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.RecurringTrip, error) {
	q := `SELECT ` + recurringColumns + ` FROM recurring_trips WHERE id = @id`

	t, err := scanRecurringTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.RecurringTrip{}, fmt.Errorf("repo.RecurringTripRepo.GetByID: %w", err)
	}
	return t, nil
}

func (r *pgRecurringTripRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE recurring_trips SET is_active = false, updated_at = now() WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.RecurringTripRepo.Deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RecurringTripRepo.Deactivate: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgRecurringTripRepo) Patch(ctx context.Context, id uuid.UUID, u domain.TripUpdates) (domain.RecurringTrip, error) {
	q := `
		UPDATE recurring_trips SET
		    pickup_address  = COALESCE(@pickup_address::text, pickup_address),
		    dropoff_address = COALESCE(@dropoff_address::text, dropoff_address),
		    scheduled_time  = COALESCE(@scheduled_time::text, scheduled_time),
		    trip_type       = COALESCE(@trip_type::text, trip_type),
		    updated_at      = now()
		WHERE id = @id
		RETURNING ` + recurringColumns

	args := patchArgs(u, "")
	args["id"] = id

	t, err := scanRecurringTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.RecurringTrip{}, fmt.Errorf("repo.RecurringTripRepo.Patch: %w", err)
	}
	return t, nil
}

func scanRecurringTrip(s scanner) (domain.RecurringTrip, error) {
	var (
		t                  domain.RecurringTrip
		id, org            pgtype.UUID
		clientID, groupID  pgtype.UUID
		createdBy          pgtype.UUID
		day                int16
		tripType           string
		createdAt, updated time.Time
	)

	err := s.Scan(&id, &org, &clientID, &groupID, &day,
		&t.ScheduledTime, &t.PickupAddress, &t.DropoffAddress, &tripType, &t.DurationWeeks,
		&t.Nickname, &t.IsActive, &createdBy, &createdAt, &updated)
	if err != nil {
		return domain.RecurringTrip{}, notFound(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OrganizationID = uuid.UUID(org.Bytes)
	t.ClientID = optionalUUID(clientID)
	t.ClientGroupID = optionalUUID(groupID)
	t.CreatedBy = optionalUUID(createdBy)
	t.DayOfWeek = time.Weekday(day)
	t.TripType = domain.TripType(tripType)
	t.CreatedAt = createdAt
	t.UpdatedAt = updated
	return t, nil
}
