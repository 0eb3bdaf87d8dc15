package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeliveryRepo records which external events have already produced a trip.
type DeliveryRepo interface {
	// Claim reserves (integrationID, eventID). It returns false when the pair
	// was claimed before.
	Claim(ctx context.Context, integrationID uuid.UUID, eventID string) (bool, error)

	// AttachTrip links a claimed delivery to the trip it produced.
	AttachTrip(ctx context.Context, integrationID uuid.UUID, eventID string, tripID uuid.UUID) error
}

type pgDeliveryRepo struct {
	db db
}

// NewDeliveryRepo constructs a DeliveryRepo backed by db.
func NewDeliveryRepo(db db) DeliveryRepo {
	return &pgDeliveryRepo{db: db}
}

func (r *pgDeliveryRepo) Claim(ctx context.Context, integrationID uuid.UUID, eventID string) (bool, error) {
	const q = `
		INSERT INTO webhook_deliveries (integration_id, external_event_id)
		VALUES (@integration_id, @event_id)
		ON CONFLICT DO NOTHING`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"integration_id": integrationID, "event_id": eventID})
	if err != nil {
		return false, fmt.Errorf("repo.DeliveryRepo.Claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgDeliveryRepo) AttachTrip(ctx context.Context, integrationID uuid.UUID, eventID string, tripID uuid.UUID) error {
	const q = `
		UPDATE webhook_deliveries SET trip_id = @trip_id
		WHERE integration_id = @integration_id AND external_event_id = @event_id`

	args := pgx.NamedArgs{"integration_id": integrationID, "event_id": eventID, "trip_id": tripID}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.DeliveryRepo.AttachTrip: %w", err)
	}
	return nil
}
