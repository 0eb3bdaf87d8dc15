package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecurringTrip is the weekly template from which dated trips are generated.
// Exactly one of ClientID and ClientGroupID is set. Templates are never hard
// deleted: removing "all future" trips only flips IsActive.
type RecurringTrip struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ClientID       *uuid.UUID
	ClientGroupID  *uuid.UUID
	DayOfWeek      time.Weekday
	ScheduledTime  string // "HH:MM" in the service timezone
	PickupAddress  string
	DropoffAddress string
	TripType       TripType
	DurationWeeks  int
	Nickname       string
	IsActive       bool
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Scope selects how much of a series a delete or modify touches.
type Scope string

const (
	// ScopeSingle affects exactly one trip instance.
	ScopeSingle Scope = "single"
	// ScopeAllFuture affects the template and every instance whose pickup
	// time has not yet passed.
	ScopeAllFuture Scope = "all_future"
)

// ParseScope returns the Scope named by s or an ErrValidation error.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeSingle, ScopeAllFuture:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: scope must be single or all_future", ErrValidation)
}

// TripUpdates is a partial patch applied to a template and/or its instances.
// Nil fields are left unchanged. ScheduledTime rewrites the time-of-day of
// each affected instance while keeping its date.
type TripUpdates struct {
	PickupAddress  *string
	DropoffAddress *string
	ScheduledTime  *string
	TripType       *TripType
	Notes          *string
}

// IsEmpty reports whether the patch changes nothing.
func (u TripUpdates) IsEmpty() bool {
	return u.PickupAddress == nil && u.DropoffAddress == nil &&
		u.ScheduledTime == nil && u.TripType == nil && u.Notes == nil
}
