package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// Grants maps a permission to an explicit allow (true) or deny (false).
// Permissions absent from the map are undefined.
type Grants map[domain.Permission]bool

// Store reads permission rows. repo.PermissionRepo implements it.
type Store interface {
	UserGrants(ctx context.Context, userID uuid.UUID) (Grants, error)
	RoleGrants(ctx context.Context, role domain.Role) (Grants, error)
}

// UserOverrideSource answers from per-user grants.
type UserOverrideSource struct {
	store Store
	cache *Cache[uuid.UUID, Grants]
}

// NewUserOverrideSource caches each user's grants for ttl.
func NewUserOverrideSource(store Store, ttl time.Duration, now func() time.Time) *UserOverrideSource {
	return &UserOverrideSource{store: store, cache: NewCache[uuid.UUID, Grants](ttl, now)}
}

func (s *UserOverrideSource) Lookup(ctx context.Context, p domain.Principal, perm domain.Permission) (Result, error) {
	grants, err := s.cache.GetOrLoad(ctx, p.UserID, func(ctx context.Context) (Grants, error) {
		return s.store.UserGrants(ctx, p.UserID)
	})
	if err != nil {
		return undefined, fmt.Errorf("permission.UserOverrideSource.Lookup: %w", err)
	}
	return grants.result(perm), nil
}

func (s *UserOverrideSource) Flush() { s.cache.InvalidateAll() }

// RoleTableSource answers from the role_permissions table.
type RoleTableSource struct {
	store Store
	cache *Cache[domain.Role, Grants]
}

// NewRoleTableSource caches each role's grants for ttl.
func NewRoleTableSource(store Store, ttl time.Duration, now func() time.Time) *RoleTableSource {
	return &RoleTableSource{store: store, cache: NewCache[domain.Role, Grants](ttl, now)}
}

func (s *RoleTableSource) Lookup(ctx context.Context, p domain.Principal, perm domain.Permission) (Result, error) {
	grants, err := s.cache.GetOrLoad(ctx, p.Role, func(ctx context.Context) (Grants, error) {
		return s.store.RoleGrants(ctx, p.Role)
	})
	if err != nil {
		return undefined, fmt.Errorf("permission.RoleTableSource.Lookup: %w", err)
	}
	return grants.result(perm), nil
}

func (s *RoleTableSource) Flush() { s.cache.InvalidateAll() }

func (g Grants) result(perm domain.Permission) Result {
	granted, ok := g[perm]
	if !ok {
		return undefined
	}
	return Result{Granted: granted, Defined: true}
}

// NewDefaultAuthorizer wires the standard chain: user overrides, role table,
// static defaults.
func NewDefaultAuthorizer(store Store, ttl time.Duration, now func() time.Time) (*Authorizer, error) {
	static, err := NewStaticSource()
	if err != nil {
		return nil, err
	}
	return NewAuthorizer(
		NewUserOverrideSource(store, ttl, now),
		NewRoleTableSource(store, ttl, now),
		static,
	), nil
}
