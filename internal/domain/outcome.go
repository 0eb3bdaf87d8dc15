package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// WebhookOutcome is the result of processing one webhook delivery.
// The set of implementations is closed: OutcomeFiltered, OutcomeClientNotFound,
// OutcomeCreated, OutcomeDuplicate and OutcomeError.
type WebhookOutcome interface {
	// LogStatus is the status written to the event log row.
	LogStatus() WebhookLogStatus
	isWebhookOutcome()
}

// OutcomeFiltered means the appointment was intentionally skipped.
type OutcomeFiltered struct{ Reason string }

// OutcomeClientNotFound means no client in the organization matched the
// appointment's first attendee.
type OutcomeClientNotFound struct{ Name string }

// OutcomeCreated means exactly one trip was inserted.
type OutcomeCreated struct {
	TripID uuid.UUID
	Status TripStatus
}

// OutcomeDuplicate means the event id was already turned into a trip.
type OutcomeDuplicate struct{ EventID string }

// OutcomeError means processing failed; Err is logged, never sent to the caller.
type OutcomeError struct{ Err error }

func (OutcomeFiltered) LogStatus() WebhookLogStatus       { return WebhookLogFiltered }
func (OutcomeClientNotFound) LogStatus() WebhookLogStatus { return WebhookLogClientNotFound }
func (OutcomeCreated) LogStatus() WebhookLogStatus        { return WebhookLogCreated }
func (OutcomeDuplicate) LogStatus() WebhookLogStatus      { return WebhookLogDuplicate }
func (OutcomeError) LogStatus() WebhookLogStatus          { return WebhookLogError }

func (OutcomeFiltered) isWebhookOutcome()       {}
func (OutcomeClientNotFound) isWebhookOutcome() {}
func (OutcomeCreated) isWebhookOutcome()        {}
func (OutcomeDuplicate) isWebhookOutcome()      {}
func (OutcomeError) isWebhookOutcome()          {}

// OutcomeReason is the human-readable explanation recorded for o. Created
// outcomes have no reason.
func OutcomeReason(o WebhookOutcome) string {
	switch o := o.(type) {
	case OutcomeFiltered:
		return o.Reason
	case OutcomeClientNotFound:
		if o.Name == "" {
			return "appointment has no named attendee"
		}
		return fmt.Sprintf("no client named %q", o.Name)
	case OutcomeDuplicate:
		return fmt.Sprintf("event %s was already processed", o.EventID)
	case OutcomeError:
		return "processing failed"
	}
	return ""
}
