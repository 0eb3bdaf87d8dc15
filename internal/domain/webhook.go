package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProviderRitten identifies the Ritten.io calendar integration.
const ProviderRitten = "ritten"

// WebhookIntegration is a configured external calendar source.
// SecretKey is empty when the provider does not sign its callbacks.
type WebhookIntegration struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	Provider        string
	Name            string
	SecretKey       string
	KeywordFilters  []string
	AttendeeFilters []string
	IsActive        bool
	CreatedAt       time.Time
}

// TripCreationRule maps an accepted appointment onto concrete trip fields.
// The pickup is scheduled PickupOffsetMinutes before the appointment start.
type TripCreationRule struct {
	ID                    uuid.UUID
	IntegrationID         uuid.UUID
	PickupOffsetMinutes   int
	DefaultPickupLocation string
	TripType              TripType
	RequiresApproval      bool
	NotesTemplate         string
	IsActive              bool
	CreatedAt             time.Time
}

// InitialStatus is the status given to trips created under this rule.
func (r TripCreationRule) InitialStatus() TripStatus {
	if r.RequiresApproval {
		return TripStatusScheduled
	}
	return TripStatusConfirmed
}

// WebhookLogStatus is the processing state recorded on an event log row.
type WebhookLogStatus string

const (
	WebhookLogPending        WebhookLogStatus = "pending"
	WebhookLogCreated        WebhookLogStatus = "created"
	WebhookLogFiltered       WebhookLogStatus = "filtered"
	WebhookLogClientNotFound WebhookLogStatus = "client_not_found"
	WebhookLogDuplicate      WebhookLogStatus = "duplicate"
	WebhookLogError          WebhookLogStatus = "error"
)

// WebhookEventLog is the append-only audit record of one webhook delivery.
// It is inserted as pending before processing and finalised exactly once.
type WebhookEventLog struct {
	ID              uuid.UUID
	IntegrationID   uuid.UUID
	OrganizationID  uuid.UUID
	EventType       string
	ExternalEventID string
	Payload         json.RawMessage
	Status          WebhookLogStatus
	Reason          string
	TripsCreated    int
	TripID          *uuid.UUID
	ErrorMessage    string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// Attendee is one participant on an external appointment.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Appointment is the provider-neutral view of a calendar entry.
type Appointment struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start_datetime"`
	End         time.Time  `json:"end_datetime"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Location    string     `json:"location,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// RittenEvent is the callback body posted by Ritten.io.
type RittenEvent struct {
	EventType    string              `json:"event_type"`
	EventID      string              `json:"event_id"`
	CalendarID   string              `json:"calendar_id"`
	Appointment  Appointment         `json:"appointment"`
	Organization *RittenOrganization `json:"organization,omitempty"`
}

// RittenOrganization is the optional organization block of a Ritten event.
type RittenOrganization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
