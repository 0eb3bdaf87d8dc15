// Package domain contains the core data types for the NEMT dispatch backend.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a trip instance.
type TripStatus string

const (
	TripStatusScheduled  TripStatus = "scheduled"
	TripStatusConfirmed  TripStatus = "confirmed"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// TripStatuses is the fixed list accepted by the status-update endpoint.
var TripStatuses = []TripStatus{
	TripStatusScheduled,
	TripStatusConfirmed,
	TripStatusInProgress,
	TripStatusCompleted,
	TripStatusCancelled,
}

// ParseTripStatus returns the TripStatus named by s or an ErrValidation error.
func ParseTripStatus(s string) (TripStatus, error) {
	for _, st := range TripStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown trip status %q", ErrValidation, s)
}

// TripType distinguishes one-way rides from round trips.
type TripType string

const (
	TripTypeOneWay    TripType = "one_way"
	TripTypeRoundTrip TripType = "round_trip"
)

// ParseTripType returns the TripType named by s or an ErrValidation error.
func ParseTripType(s string) (TripType, error) {
	switch TripType(s) {
	case TripTypeOneWay, TripTypeRoundTrip:
		return TripType(s), nil
	}
	return "", fmt.Errorf("%w: trip type must be one_way or round_trip", ErrValidation)
}

// TripSource records which pipeline created a trip.
type TripSource string

const (
	TripSourceManual    TripSource = "manual"
	TripSourceRecurring TripSource = "recurring"
	TripSourceWebhook   TripSource = "webhook"
)

// Trip is one concrete, dated ride.
// Exactly one of ClientID and ClientGroupID is set. RecurringTripID links the
// instance back to the template that generated it and is never changed after
// insert.
type Trip struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	ClientID            *uuid.UUID
	ClientGroupID       *uuid.UUID
	GroupName           string // display-name snapshot taken at creation
	PickupAddress       string
	DropoffAddress      string
	ScheduledPickupTime time.Time
	TripType            TripType
	Status              TripStatus
	RecurringTripID     *uuid.UUID
	Notes               string
	Source              TripSource
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TripFilter narrows a trip listing to one organization and an optional
// pickup-time window [From, To).
type TripFilter struct {
	OrganizationID uuid.UUID
	From           *time.Time
	To             *time.Time
}
