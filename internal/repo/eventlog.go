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

// EventLogRepo persists the webhook audit trail.
type EventLogRepo interface {
	// Insert records a delivery as pending.
	Insert(ctx context.Context, l domain.WebhookEventLog) (domain.WebhookEventLog, error)

	// Finalize sets the terminal status of a pending row. A row that has
	// already been finalised is left untouched and domain.ErrConflict returned.
	Finalize(ctx context.Context, l domain.WebhookEventLog) error

	// ListRecent returns an organization's newest logs first.
	ListRecent(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.WebhookEventLog, error)

	// PruneBefore deletes logs created before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type pgEventLogRepo struct {
	db db
}

// NewEventLogRepo constructs an EventLogRepo backed by db.
func NewEventLogRepo(db db) EventLogRepo {
	return &pgEventLogRepo{db: db}
}

const eventLogColumns = `id, integration_id, organization_id, event_type, external_event_id,
	payload, status, reason, trips_created, trip_id, error_message, created_at, processed_at`

func (r *pgEventLogRepo) Insert(ctx context.Context, l domain.WebhookEventLog) (domain.WebhookEventLog, error) {
	q := `
		INSERT INTO webhook_event_logs (integration_id, organization_id, event_type,
		                                external_event_id, payload, status)
		VALUES (@integration_id, @organization_id, @event_type,
		        @external_event_id, @payload, 'pending')
		RETURNING ` + eventLogColumns

	var payload any
	if len(l.Payload) > 0 {
		payload = string(l.Payload)
	}
	args := pgx.NamedArgs{
		"integration_id":    l.IntegrationID,
		"organization_id":   l.OrganizationID,
		"event_type":        l.EventType,
		"external_event_id": l.ExternalEventID,
		"payload":           payload,
	}
	created, err := scanEventLog(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.WebhookEventLog{}, fmt.Errorf("repo.EventLogRepo.Insert: %w", err)
	}
	return created, nil
}

func (r *pgEventLogRepo) Finalize(ctx context.Context, l domain.WebhookEventLog) error {
	const q = `
		UPDATE webhook_event_logs SET
		    status            = @status,
		    event_type        = COALESCE(NULLIF(@event_type::text, ''), event_type),
		    external_event_id = COALESCE(NULLIF(@external_event_id::text, ''), external_event_id),
		    reason            = @reason,
		    trips_created     = @trips_created,
		    trip_id           = @trip_id,
		    error_message     = @error_message,
		    processed_at      = now()
		WHERE id = @id AND status = 'pending'`

	args := pgx.NamedArgs{
		"id":                l.ID,
		"status":            string(l.Status),
		"event_type":        l.EventType,
		"external_event_id": l.ExternalEventID,
		"reason":            l.Reason,
		"trips_created":     l.TripsCreated,
		"trip_id":           l.TripID,
		"error_message":     l.ErrorMessage,
	}
	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.EventLogRepo.Finalize: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.EventLogRepo.Finalize: %w", domain.ErrConflict)
	}
	return nil
}

func (r *pgEventLogRepo) ListRecent(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.WebhookEventLog, error) {
	q := `SELECT ` + eventLogColumns + `
		FROM webhook_event_logs
		WHERE organization_id = @org
		ORDER BY created_at DESC, id DESC
		LIMIT @limit`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"org": orgID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.EventLogRepo.ListRecent: %w", err)
	}
	out, err := collect(rows, scanEventLog)
	if err != nil {
		return nil, fmt.Errorf("repo.EventLogRepo.ListRecent: scan: %w", err)
	}
	return out, nil
}

func (r *pgEventLogRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_event_logs WHERE created_at < @cutoff`, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.EventLogRepo.PruneBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEventLog(s scanner) (domain.WebhookEventLog, error) {
	var (
		l             domain.WebhookEventLog
		id, inID, org pgtype.UUID
		tripID        pgtype.UUID
		payload       []byte
		status        string
		processedAt   pgtype.Timestamptz
	)
	err := s.Scan(&id, &inID, &org, &l.EventType, &l.ExternalEventID,
		&payload, &status, &l.Reason, &l.TripsCreated, &tripID, &l.ErrorMessage, &l.CreatedAt, &processedAt)
	if err != nil {
		return domain.WebhookEventLog{}, notFound(err)
	}
	l.ID = uuid.UUID(id.Bytes)
	l.IntegrationID = uuid.UUID(inID.Bytes)
	l.OrganizationID = uuid.UUID(org.Bytes)
	l.TripID = optionalUUID(tripID)
	l.Payload = payload
	l.Status = domain.WebhookLogStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		l.ProcessedAt = &t
	}
	return l, nil
}
