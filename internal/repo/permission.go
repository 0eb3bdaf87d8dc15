package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/permission"
)

// PermissionRepo reads explicit grants. It implements permission.Store.
type PermissionRepo interface {
	UserGrants(ctx context.Context, userID uuid.UUID) (permission.Grants, error)
	RoleGrants(ctx context.Context, role domain.Role) (permission.Grants, error)
}

type pgPermissionRepo struct {
	db db
}

// NewPermissionRepo constructs a PermissionRepo backed by db.
func NewPermissionRepo(db db) PermissionRepo {
	return &pgPermissionRepo{db: db}
}

func (r *pgPermissionRepo) UserGrants(ctx context.Context, userID uuid.UUID) (permission.Grants, error) {
	const q = `SELECT permission, granted FROM user_permissions WHERE user_id = @id`

	g, err := r.grants(ctx, q, pgx.NamedArgs{"id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.PermissionRepo.UserGrants: %w", err)
	}
	return g, nil
}

func (r *pgPermissionRepo) RoleGrants(ctx context.Context, role domain.Role) (permission.Grants, error) {
	const q = `SELECT permission, granted FROM role_permissions WHERE role = @role`

	g, err := r.grants(ctx, q, pgx.NamedArgs{"role": string(role)})
	if err != nil {
		return nil, fmt.Errorf("repo.PermissionRepo.RoleGrants: %w", err)
	}
	return g, nil
}

func (r *pgPermissionRepo) grants(ctx context.Context, q string, args pgx.NamedArgs) (permission.Grants, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	g := permission.Grants{}
	for rows.Next() {
		var (
			perm    string
			granted bool
		)
		if err := rows.Scan(&perm, &granted); err != nil {
			return nil, err
		}
		g[domain.Permission(perm)] = granted
	}
	return g, rows.Err()
}
