package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// FlushingAuthorizer is an Authorizer whose cached decisions can be dropped.
type FlushingAuthorizer interface {
	Authorizer
	Flush()
}

// PermissionService exposes permission cache administration.
type PermissionService struct {
	authz FlushingAuthorizer
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(authz FlushingAuthorizer) *PermissionService {
	return &PermissionService{authz: authz}
}

// Refresh drops every cached permission decision. Requires permissions:admin.
func (s *PermissionService) Refresh(ctx context.Context, p domain.Principal) error {
	if err := s.authz.Require(ctx, p, domain.PermPermissionsAdmin, uuid.Nil); err != nil {
		return fmt.Errorf("service.PermissionService.Refresh: %w", err)
	}
	s.authz.Flush()
	slog.InfoContext(ctx, "permission cache flushed", "user_id", p.UserID)
	return nil
}
