// Package permission decides whether a principal may perform an operation.
//
// A decision is the first defined answer from an ordered chain of sources:
// per-user overrides, then the role_permissions table, then the static role
// defaults compiled into the binary. When no source has an opinion the
// request is denied.
package permission

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// Result is one source's answer. Granted is meaningful only when Defined.
type Result struct {
	Granted bool
	Defined bool
}

var undefined = Result{}

// Source answers permission lookups for a principal.
type Source interface {
	Lookup(ctx context.Context, p domain.Principal, perm domain.Permission) (Result, error)
}

// flusher is implemented by sources that cache lookups.
type flusher interface {
	Flush()
}

// FirstDefined returns the Granted value of the first defined result.
// All-undefined input denies.
func FirstDefined(results ...Result) bool {
	for _, r := range results {
		if r.Defined {
			return r.Granted
		}
	}
	return false
}

// Chain evaluates its sources in order and stops at the first defined result.
type Chain []Source

// Allowed reports whether p holds perm.
func (c Chain) Allowed(ctx context.Context, p domain.Principal, perm domain.Permission) (bool, error) {
	for _, s := range c {
		r, err := s.Lookup(ctx, p, perm)
		if err != nil {
			return false, fmt.Errorf("permission.Chain.Allowed: %w", err)
		}
		if r.Defined {
			return r.Granted, nil
		}
	}
	return FirstDefined(), nil
}

// Authorizer enforces permissions and organization scope.
type Authorizer struct {
	chain Chain
}

// NewAuthorizer builds an Authorizer over sources, evaluated in order.
func NewAuthorizer(sources ...Source) *Authorizer {
	return &Authorizer{chain: Chain(sources)}
}

// Require returns domain.ErrForbidden unless p holds perm and, when orgID is
// set, belongs to that organization. super_admin may act on any organization.
func (a *Authorizer) Require(ctx context.Context, p domain.Principal, perm domain.Permission, orgID uuid.UUID) error {
	ok, err := a.chain.Allowed(ctx, p, perm)
	if err != nil {
		return fmt.Errorf("permission.Authorizer.Require: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks %s", domain.ErrForbidden, p.Role, perm)
	}
	if orgID != uuid.Nil && p.Role != domain.RoleSuperAdmin && orgID != p.OrganizationID {
		return fmt.Errorf("%w: organization out of scope", domain.ErrForbidden)
	}
	return nil
}

// Flush drops every cached lookup so the next request re-reads the database.
func (a *Authorizer) Flush() {
	for _, s := range a.chain {
		if f, ok := s.(flusher); ok {
			f.Flush()
		}
	}
}
