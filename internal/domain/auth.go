package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's position in the corporate client → program hierarchy.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleCorporateAdmin Role = "corporate_admin"
	RoleProgramAdmin   Role = "program_admin"
	RoleProgramUser    Role = "program_user"
	RoleDriver         Role = "driver"
)

// Permission names one guarded capability.
type Permission string

const (
	PermTripsRead          Permission = "trips:read"
	PermTripsWrite         Permission = "trips:write"
	PermTripsUpdateStatus  Permission = "trips:update_status"
	PermRecurringManage    Permission = "recurring_trips:manage"
	PermIntegrationsRead   Permission = "integrations:read"
	PermIntegrationsManage Permission = "integrations:manage"
	PermPermissionsAdmin   Permission = "permissions:admin"
)

// Principal is the authenticated caller of an API request.
type Principal struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Email          string
	Role           Role
}

// User is an operator account.
type User struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Email          string
	Role           Role
	CreatedAt      time.Time
}

// Principal returns the request principal for u.
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, OrganizationID: u.OrganizationID, Email: u.Email, Role: u.Role}
}

// APIToken is a stored bearer credential. Only the argon2id hash of the
// secret half is persisted.
type APIToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	RevokedAt *time.Time
	CreatedAt time.Time
}
