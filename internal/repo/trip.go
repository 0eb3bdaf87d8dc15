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

// TripRepo defines the persistence operations for dated trip instances.
type TripRepo interface {
	// Create inserts a trip and returns the persisted record.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// CreateMany inserts every trip in one round trip and returns them in
	// input order. Call it inside a transaction when the batch must be
	// all-or-nothing.
	CreateMany(ctx context.Context, trips []domain.Trip) ([]domain.Trip, error)

	// GetByID returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// ListPaged returns one page of an organization's trips ordered by pickup
	// time, plus the total count of matching rows.
	ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// Manifest returns the flattened rows for trips picked up in [from, to).
	Manifest(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.ManifestRow, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error)

	// Delete removes a trip by ID. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteInstance removes one trip of a series. Returns domain.ErrNotFound
	// when the trip does not exist or belongs to another template.
	DeleteInstance(ctx context.Context, templateID, tripID uuid.UUID) error

	// DeleteFuture removes every trip of a series with a pickup at or after
	// now and returns how many were deleted.
	DeleteFuture(ctx context.Context, templateID uuid.UUID, now time.Time) (int64, error)

	// PatchInstance applies u to one trip of a series. Returns
	// domain.ErrNotFound when the trip is not part of the template.
	PatchInstance(ctx context.Context, templateID, tripID uuid.UUID, u domain.TripUpdates, tz string) error

	// PatchFuture applies u to every trip of a series with a pickup at or
	// after now and returns how many were updated.
	PatchFuture(ctx context.Context, templateID uuid.UUID, now time.Time, u domain.TripUpdates, tz string) (int64, error)
}

type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, organization_id, client_id, client_group_id, group_name,
	pickup_address, dropoff_address, scheduled_pickup_time, trip_type, status,
	recurring_trip_id, notes, source, created_at, updated_at`

const insertTripSQL = `
	INSERT INTO trips (organization_id, client_id, client_group_id, group_name,
	                   pickup_address, dropoff_address, scheduled_pickup_time,
	                   trip_type, status, recurring_trip_id, notes, source)
	VALUES (@organization_id, @client_id, @client_group_id, @group_name,
	        @pickup_address, @dropoff_address, @scheduled_pickup_time,
	        @trip_type, @status, @recurring_trip_id, @notes, @source)
	RETURNING ` + tripColumns

func insertTripArgs(trip domain.Trip) pgx.NamedArgs {
	status := trip.Status
	if status == "" {
		status = domain.TripStatusScheduled
	}
	source := trip.Source
	if source == "" {
		source = domain.TripSourceManual
	}

	return pgx.NamedArgs{
		"organization_id":       trip.OrganizationID,
		"client_id":             trip.ClientID, // nil becomes NULL
		"client_group_id":       trip.ClientGroupID,
		"group_name":            trip.GroupName,
		"pickup_address":        trip.PickupAddress,
		"dropoff_address":       trip.DropoffAddress,
		"scheduled_pickup_time": trip.ScheduledPickupTime,
		"trip_type":             string(trip.TripType),
		"status":                string(status),
		"recurring_trip_id":     trip.RecurringTripID,
		"notes":                 trip.Notes,
		"source":                string(source),
	}
}

func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	created, err := scanTrip(r.db.QueryRow(ctx, insertTripSQL, insertTripArgs(trip)))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return created, nil
}

// CreateMany sends every insert in one batch. Results come back in queue
// order, so the returned slice lines up with trips.
func (r *pgTripRepo) CreateMany(ctx context.Context, trips []domain.Trip) ([]domain.Trip, error) {
	if len(trips) == 0 {
		return []domain.Trip{}, nil
	}

	b := &pgx.Batch{}
	for _, t := range trips {
		b.Queue(insertTripSQL, insertTripArgs(t))
	}

	br := r.db.SendBatch(ctx, b)
	out := make([]domain.Trip, 0, len(trips))
	for range trips {
		created, err := scanTrip(br.QueryRow())
		if err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("repo.TripRepo.CreateMany: %w", err)
		}
		out = append(out, created)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.CreateMany: %w", err)
	}
	return out, nil
}

func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	t, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return t, nil
}

func (r *pgTripRepo) ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	const where = `
		WHERE organization_id = @org
		  AND (@from::timestamptz IS NULL OR scheduled_pickup_time >= @from::timestamptz)
		  AND (@to::timestamptz IS NULL OR scheduled_pickup_time < @to::timestamptz)`

	args := pgx.NamedArgs{
		"org":    f.OrganizationID,
		"from":   f.From,
		"to":     f.To,
		"limit":  p.Limit,
		"offset": p.Offset(),
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM trips`+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: count: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+` FROM trips`+where+`
		ORDER BY scheduled_pickup_time, id
		LIMIT @limit OFFSET @offset`, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: %w", err)
	}
	trips, err := collect(rows, scanTrip)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: scan: %w", err)
	}
	return trips, total, nil
}

func (r *pgTripRepo) Manifest(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.ManifestRow, error) {
	const q = `
		SELECT t.id, t.scheduled_pickup_time,
		       COALESCE(NULLIF(trim(c.first_name || ' ' || c.last_name), ''), g.name, t.group_name, ''),
		       t.pickup_address, t.dropoff_address, t.trip_type, t.status,
		       t.recurring_trip_id IS NOT NULL, t.notes
		FROM trips t
		LEFT JOIN clients c ON c.id = t.client_id
		LEFT JOIN client_groups g ON g.id = t.client_group_id
		WHERE t.organization_id = @org
		  AND t.scheduled_pickup_time >= @from
		  AND t.scheduled_pickup_time < @to
		ORDER BY t.scheduled_pickup_time, t.id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"org": orgID, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.Manifest: %w", err)
	}
	out, err := collect(rows, func(s scanner) (domain.ManifestRow, error) {
		var (
			m        domain.ManifestRow
			id       pgtype.UUID
			tripType string
			status   string
		)
		if err := s.Scan(&id, &m.PickupTime, &m.RiderName, &m.PickupAddress, &m.DropoffAddress,
			&tripType, &status, &m.Recurring, &m.Notes); err != nil {
			return domain.ManifestRow{}, err
		}
		m.TripID = uuid.UUID(id.Bytes).String()
		m.TripType = domain.TripType(tripType)
		m.Status = domain.TripStatus(status)
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.Manifest: scan: %w", err)
	}
	return out, nil
}

func (r *pgTripRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	q := `
		UPDATE trips SET status = @status, updated_at = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	t, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateStatus: %w", err)
	}
	return t, nil
}

func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripRepo) DeleteInstance(ctx context.Context, templateID, tripID uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id AND recurring_trip_id = @template_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": tripID, "template_id": templateID})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.DeleteInstance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.DeleteInstance: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripRepo) DeleteFuture(ctx context.Context, templateID uuid.UUID, now time.Time) (int64, error) {
	const q = `DELETE FROM trips WHERE recurring_trip_id = @template_id AND scheduled_pickup_time >= @now`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"template_id": templateID, "now": now})
	if err != nil {
		return 0, fmt.Errorf("repo.TripRepo.DeleteFuture: %w", err)
	}
	return tag.RowsAffected(), nil
}

// patchSet is shared by PatchInstance and PatchFuture. A new time-of-day is
// applied to each row's local date in @tz.
const patchSet = `
	UPDATE trips SET
	    pickup_address  = COALESCE(@pickup_address::text, pickup_address),
	    dropoff_address = COALESCE(@dropoff_address::text, dropoff_address),
	    trip_type       = COALESCE(@trip_type::text, trip_type),
	    notes           = COALESCE(@notes::text, notes),
	    scheduled_pickup_time = CASE
	        WHEN @scheduled_time::text IS NULL THEN scheduled_pickup_time
	        ELSE ((scheduled_pickup_time AT TIME ZONE @tz::text)::date
	              + (@scheduled_time::text)::time) AT TIME ZONE @tz::text
	    END,
	    updated_at = now()`

func patchArgs(u domain.TripUpdates, tz string) pgx.NamedArgs {
	var tripType *string
	if u.TripType != nil {
		s := string(*u.TripType)
		tripType = &s
	}
	return pgx.NamedArgs{
		"pickup_address":  u.PickupAddress,
		"dropoff_address": u.DropoffAddress,
		"trip_type":       tripType,
		"notes":           u.Notes,
		"scheduled_time":  u.ScheduledTime,
		"tz":              tz,
	}
}

func (r *pgTripRepo) PatchInstance(ctx context.Context, templateID, tripID uuid.UUID, u domain.TripUpdates, tz string) error {
	args := patchArgs(u, tz)
	args["id"] = tripID
	args["template_id"] = templateID

	tag, err := r.db.Exec(ctx, patchSet+` WHERE id = @id AND recurring_trip_id = @template_id`, args)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.PatchInstance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.PatchInstance: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripRepo) PatchFuture(ctx context.Context, templateID uuid.UUID, now time.Time, u domain.TripUpdates, tz string) (int64, error) {
	args := patchArgs(u, tz)
	args["template_id"] = templateID
	args["now"] = now

	tag, err := r.db.Exec(ctx, patchSet+` WHERE recurring_trip_id = @template_id AND scheduled_pickup_time >= @now`, args)
	if err != nil {
		return 0, fmt.Errorf("repo.TripRepo.PatchFuture: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanTrip maps a single row selected with tripColumns into a domain.Trip.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t                         domain.Trip
		id, org                   pgtype.UUID
		clientID, groupID, tmplID pgtype.UUID
		tripType, status, source  string
	)

	err := s.Scan(&id, &org, &clientID, &groupID, &t.GroupName,
		&t.PickupAddress, &t.DropoffAddress, &t.ScheduledPickupTime, &tripType, &status,
		&tmplID, &t.Notes, &source, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Trip{}, notFound(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OrganizationID = uuid.UUID(org.Bytes)
	t.ClientID = optionalUUID(clientID)
	t.ClientGroupID = optionalUUID(groupID)
	t.RecurringTripID = optionalUUID(tmplID)
	t.TripType = domain.TripType(tripType)
	t.Status = domain.TripStatus(status)
	t.Source = domain.TripSource(source)
	return t, nil
}
