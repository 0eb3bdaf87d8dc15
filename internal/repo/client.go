package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// ClientRepo reads riders and rider groups.
type ClientRepo interface {
	Create(ctx context.Context, c domain.Client) (domain.Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error)

	// FindByFullName matches "first last" case-insensitively within an
	// organization. The oldest client wins when names collide. Returns
	// domain.ErrNotFound when nobody matches.
	FindByFullName(ctx context.Context, orgID uuid.UUID, name string) (domain.Client, error)

	CreateGroup(ctx context.Context, g domain.ClientGroup) (domain.ClientGroup, error)
	GetGroup(ctx context.Context, id uuid.UUID) (domain.ClientGroup, error)
}

type pgClientRepo struct {
	db db
}

// NewClientRepo constructs a ClientRepo backed by db.
func NewClientRepo(db db) ClientRepo {
	return &pgClientRepo{db: db}
}

const clientColumns = `id, organization_id, first_name, last_name, home_address, created_at`

func (r *pgClientRepo) Create(ctx context.Context, c domain.Client) (domain.Client, error) {
	q := `
		INSERT INTO clients (organization_id, first_name, last_name, home_address)
		VALUES (@organization_id, @first_name, @last_name, @home_address)
		RETURNING ` + clientColumns

	args := pgx.NamedArgs{
		"organization_id": c.OrganizationID,
		"first_name":      c.FirstName,
		"last_name":       c.LastName,
		"home_address":    c.HomeAddress,
	}
	created, err := scanClient(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Client{}, fmt.Errorf("repo.ClientRepo.Create: %w", err)
	}
	return created, nil
}

func (r *pgClientRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = @id`, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Client{}, fmt.Errorf("repo.ClientRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *pgClientRepo) FindByFullName(ctx context.Context, orgID uuid.UUID, name string) (domain.Client, error) {
	q := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE organization_id = @org
		  AND lower(first_name || ' ' || last_name) = lower(@name)
		ORDER BY created_at, id
		LIMIT 1`

	name = strings.Join(strings.Fields(name), " ")
	c, err := scanClient(r.db.QueryRow(ctx, q, pgx.NamedArgs{"org": orgID, "name": name}))
	if err != nil {
		return domain.Client{}, fmt.Errorf("repo.ClientRepo.FindByFullName: %w", err)
	}
	return c, nil
}

func (r *pgClientRepo) CreateGroup(ctx context.Context, g domain.ClientGroup) (domain.ClientGroup, error) {
	const q = `
		INSERT INTO client_groups (organization_id, name)
		VALUES (@organization_id, @name)
		RETURNING id, organization_id, name, created_at`

	created, err := scanClientGroup(r.db.QueryRow(ctx, q, pgx.NamedArgs{"organization_id": g.OrganizationID, "name": g.Name}))
	if err != nil {
		return domain.ClientGroup{}, fmt.Errorf("repo.ClientRepo.CreateGroup: %w", err)
	}
	return created, nil
}

func (r *pgClientRepo) GetGroup(ctx context.Context, id uuid.UUID) (domain.ClientGroup, error) {
	const q = `SELECT id, organization_id, name, created_at FROM client_groups WHERE id = @id`

	g, err := scanClientGroup(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.ClientGroup{}, fmt.Errorf("repo.ClientRepo.GetGroup: %w", err)
	}
	return g, nil
}

func scanClient(s scanner) (domain.Client, error) {
	var (
		c       domain.Client
		id, org pgtype.UUID
	)
	if err := s.Scan(&id, &org, &c.FirstName, &c.LastName, &c.HomeAddress, &c.CreatedAt); err != nil {
		return domain.Client{}, notFound(err)
	}
	c.ID = uuid.UUID(id.Bytes)
	c.OrganizationID = uuid.UUID(org.Bytes)
	return c, nil
}

func scanClientGroup(s scanner) (domain.ClientGroup, error) {
	var (
		g       domain.ClientGroup
		id, org pgtype.UUID
	)
	if err := s.Scan(&id, &org, &g.Name, &g.CreatedAt); err != nil {
		return domain.ClientGroup{}, notFound(err)
	}
	g.ID = uuid.UUID(id.Bytes)
	g.OrganizationID = uuid.UUID(org.Bytes)
	return g, nil
}
