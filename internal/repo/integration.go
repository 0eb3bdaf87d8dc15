package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// IntegrationRepo persists webhook integrations and their trip creation rules.
type IntegrationRepo interface {
	Create(ctx context.Context, in domain.WebhookIntegration) (domain.WebhookIntegration, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.WebhookIntegration, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.WebhookIntegration, error)

	CreateRule(ctx context.Context, rule domain.TripCreationRule) (domain.TripCreationRule, error)
	// ActiveRule returns the oldest active rule of an integration, or
	// domain.ErrNotFound when there is none.
	ActiveRule(ctx context.Context, integrationID uuid.UUID) (domain.TripCreationRule, error)
}

type pgIntegrationRepo struct {
	db db
}

// NewIntegrationRepo constructs an IntegrationRepo backed by db.
func NewIntegrationRepo(db db) IntegrationRepo {
	return &pgIntegrationRepo{db: db}
}

const integrationColumns = `id, organization_id, provider, name, secret_key,
	keyword_filters, attendee_filters, is_active, created_at`

func (r *pgIntegrationRepo) Create(ctx context.Context, in domain.WebhookIntegration) (domain.WebhookIntegration, error) {
	q := `
		INSERT INTO webhook_integrations (organization_id, provider, name, secret_key,
		                                  keyword_filters, attendee_filters, is_active)
		VALUES (@organization_id, @provider, @name, @secret_key,
		        @keyword_filters, @attendee_filters, @is_active)
		RETURNING ` + integrationColumns

	args := pgx.NamedArgs{
		"organization_id":  in.OrganizationID,
		"provider":         in.Provider,
		"name":             in.Name,
		"secret_key":       in.SecretKey,
		"keyword_filters":  nonNil(in.KeywordFilters),
		"attendee_filters": nonNil(in.AttendeeFilters),
		"is_active":        in.IsActive,
	}
	created, err := scanIntegration(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.WebhookIntegration{}, fmt.Errorf("repo.IntegrationRepo.Create: %w", err)
	}
	return created, nil
}

func (r *pgIntegrationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.WebhookIntegration, error) {
	q := `SELECT ` + integrationColumns + ` FROM webhook_integrations WHERE id = @id`

	in, err := scanIntegration(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.WebhookIntegration{}, fmt.Errorf("repo.IntegrationRepo.GetByID: %w", err)
	}
	return in, nil
}

func (r *pgIntegrationRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.WebhookIntegration, error) {
	q := `SELECT ` + integrationColumns + `
		FROM webhook_integrations
		WHERE organization_id = @org
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"org": orgID})
	if err != nil {
		return nil, fmt.Errorf("repo.IntegrationRepo.ListByOrganization: %w", err)
	}
	out, err := collect(rows, scanIntegration)
	if err != nil {
		return nil, fmt.Errorf("repo.IntegrationRepo.ListByOrganization: scan: %w", err)
	}
	return out, nil
}

const ruleColumns = `id, integration_id, pickup_offset_minutes, default_pickup_location,
	trip_type, requires_approval, notes_template, is_active, created_at`

func (r *pgIntegrationRepo) CreateRule(ctx context.Context, rule domain.TripCreationRule) (domain.TripCreationRule, error) {
	q := `
		INSERT INTO trip_creation_rules (integration_id, pickup_offset_minutes, default_pickup_location,
		                                 trip_type, requires_approval, notes_template, is_active)
		VALUES (@integration_id, @pickup_offset_minutes, @default_pickup_location,
		        @trip_type, @requires_approval, @notes_template, @is_active)
		RETURNING ` + ruleColumns

	args := pgx.NamedArgs{
		"integration_id":          rule.IntegrationID,
		"pickup_offset_minutes":   rule.PickupOffsetMinutes,
		"default_pickup_location": rule.DefaultPickupLocation,
		"trip_type":               string(rule.TripType),
		"requires_approval":       rule.RequiresApproval,
		"notes_template":          rule.NotesTemplate,
		"is_active":               rule.IsActive,
	}
	created, err := scanRule(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.TripCreationRule{}, fmt.Errorf("repo.IntegrationRepo.CreateRule: %w", err)
	}
	return created, nil
}

func (r *pgIntegrationRepo) ActiveRule(ctx context.Context, integrationID uuid.UUID) (domain.TripCreationRule, error) {
	q := `SELECT ` + ruleColumns + `
		FROM trip_creation_rules
		WHERE integration_id = @integration_id AND is_active
		ORDER BY created_at, id
		LIMIT 1`

	rule, err := scanRule(r.db.QueryRow(ctx, q, pgx.NamedArgs{"integration_id": integrationID}))
	if err != nil {
		return domain.TripCreationRule{}, fmt.Errorf("repo.IntegrationRepo.ActiveRule: %w", err)
	}
	return rule, nil
}

func scanIntegration(s scanner) (domain.WebhookIntegration, error) {
	var (
		in      domain.WebhookIntegration
		id, org pgtype.UUID
	)
	err := s.Scan(&id, &org, &in.Provider, &in.Name, &in.SecretKey,
		&in.KeywordFilters, &in.AttendeeFilters, &in.IsActive, &in.CreatedAt)
	if err != nil {
		return domain.WebhookIntegration{}, notFound(err)
	}
	in.ID = uuid.UUID(id.Bytes)
	in.OrganizationID = uuid.UUID(org.Bytes)
	return in, nil
}

func scanRule(s scanner) (domain.TripCreationRule, error) {
	var (
		rule     domain.TripCreationRule
		id, inID pgtype.UUID
		tripType string
	)
	err := s.Scan(&id, &inID, &rule.PickupOffsetMinutes, &rule.DefaultPickupLocation,
		&tripType, &rule.RequiresApproval, &rule.NotesTemplate, &rule.IsActive, &rule.CreatedAt)
	if err != nil {
		return domain.TripCreationRule{}, notFound(err)
	}
	rule.ID = uuid.UUID(id.Bytes)
	rule.IntegrationID = uuid.UUID(inID.Bytes)
	rule.TripType = domain.TripType(tripType)
	return rule, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
