package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pkordes/nemt-dispatch/internal/dedupe"
	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/notify"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/telemetry"
	"github.com/pkordes/nemt-dispatch/internal/webhook"
)

// errAlreadyDelivered aborts the trip transaction when the delivery row
// already exists.
var errAlreadyDelivered = errors.New("delivery already claimed")

// WebhookDeps are the collaborators of a WebhookService. Guard, Notifier,
// Metrics and Now are optional.
type WebhookDeps struct {
	Repos    repo.Repos
	Tx       repo.Transactor
	Decoder  *webhook.RittenDecoder
	Guard    dedupe.Guard
	Notifier notify.Notifier
	Metrics  *telemetry.Metrics
	Now      func() time.Time
}

// WebhookOptions tune ingestion behaviour.
type WebhookOptions struct {
	// LeadTime is the minimum notice an appointment must give.
	LeadTime time.Duration
	// Dedupe turns repeated deliveries of one event id into OutcomeDuplicate.
	// When false every accepted delivery creates a trip.
	Dedupe bool
}

// IngestResult is the processed form of one delivery.
type IngestResult struct {
	Outcome domain.WebhookOutcome
	LogID   uuid.UUID
}

// Processed reports whether the delivery created a trip.
func (r IngestResult) Processed() bool {
	_, ok := r.Outcome.(domain.OutcomeCreated)
	return ok
}

// TripsCreated is 1 for a created outcome and 0 otherwise.
func (r IngestResult) TripsCreated() int {
	if r.Processed() {
		return 1
	}
	return 0
}

// WebhookService turns signed calendar callbacks into trips.
type WebhookService struct {
	repos    repo.Repos
	tx       repo.Transactor
	decoder  *webhook.RittenDecoder
	guard    dedupe.Guard
	notifier notify.Notifier
	metrics  *telemetry.Metrics
	now      func() time.Time
	opts     WebhookOptions
}

// NewWebhookService constructs a WebhookService. A zero LeadTime uses
// webhook.DefaultLeadTime.
func NewWebhookService(deps WebhookDeps, opts WebhookOptions) *WebhookService {
	s := &WebhookService{
		repos:    deps.Repos,
		tx:       deps.Tx,
		decoder:  deps.Decoder,
		guard:    deps.Guard,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      deps.Now,
		opts:     opts,
	}
	if s.guard == nil {
		s.guard = dedupe.NopGuard{}
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.opts.LeadTime == 0 {
		s.opts.LeadTime = webhook.DefaultLeadTime
	}
	return s
}

// Ingest processes one delivery for integrationID.
//
// An unknown or inactive integration returns domain.ErrNotFound and a bad
// signature domain.ErrUnauthorized; nothing is logged for either. Every other
// delivery is recorded in the event log as pending, processed, and finalised
// with its outcome. Business failures are outcomes, not errors: the caller
// gets an IngestResult and a nil error.
func (s *WebhookService) Ingest(ctx context.Context, integrationID uuid.UUID, body []byte, signature string) (IngestResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "webhook.ingest",
		trace.WithAttributes(attribute.String("integration.id", integrationID.String())))
	defer span.End()

	in, err := s.repos.Integrations.GetByID(ctx, integrationID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("service.WebhookService.Ingest: %w", err)
	}
	if !in.IsActive {
		return IngestResult{}, fmt.Errorf("service.WebhookService.Ingest: integration disabled: %w", domain.ErrNotFound)
	}
	if !webhook.VerifySignature(in.SecretKey, body, signature) {
		return IngestResult{}, fmt.Errorf("service.WebhookService.Ingest: bad signature: %w", domain.ErrUnauthorized)
	}

	entry, err := s.repos.EventLogs.Insert(ctx, domain.WebhookEventLog{
		IntegrationID:  in.ID,
		OrganizationID: in.OrganizationID,
		Payload:        payloadJSON(body),
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("service.WebhookService.Ingest: %w", err)
	}

	outcome := s.process(ctx, in, body, &entry)
	recordOutcome(&entry, outcome)
	if err := s.repos.EventLogs.Finalize(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "webhook log finalize failed", "log_id", entry.ID, "error", err)
	}

	s.metrics.WebhookOutcome(ctx, outcome)
	span.SetAttributes(attribute.String("webhook.outcome", string(outcome.LogStatus())))
	if e, ok := outcome.(domain.OutcomeError); ok {
		span.RecordError(e.Err)
		slog.ErrorContext(ctx, "webhook processing failed",
			"integration_id", in.ID, "log_id", entry.ID, "error", e.Err)
	} else {
		slog.InfoContext(ctx, "webhook processed",
			"integration_id", in.ID,
			"log_id", entry.ID,
			"outcome", outcome.LogStatus(),
			"reason", domain.OutcomeReason(outcome),
		)
	}
	return IngestResult{Outcome: outcome, LogID: entry.ID}, nil
}

// process runs provider dispatch, filtering, rule and client resolution, and
// the trip insert. It fills entry's event identifiers as soon as they are
// known.
func (s *WebhookService) process(ctx context.Context, in domain.WebhookIntegration, body []byte, entry *domain.WebhookEventLog) domain.WebhookOutcome {
	if in.Provider != domain.ProviderRitten {
		return domain.OutcomeFiltered{Reason: fmt.Sprintf("provider %q has no trip mapping", in.Provider)}
	}
	ev, err := s.decoder.Decode(body)
	if err != nil {
		return domain.OutcomeError{Err: err}
	}
	entry.EventType = ev.EventType
	entry.ExternalEventID = ev.EventID

	appt := ev.Appointment
	if d := webhook.Decide(appt, webhook.FiltersFor(in, s.opts.LeadTime), s.now()); !d.Create {
		return domain.OutcomeFiltered{Reason: d.Reason}
	}

	rule, err := s.repos.Integrations.ActiveRule(ctx, in.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.OutcomeError{Err: errors.New("integration has no active trip creation rule")}
	}
	if err != nil {
		return domain.OutcomeError{Err: err}
	}

	name, ok := webhook.PrimaryAttendee(appt)
	if !ok {
		return domain.OutcomeClientNotFound{}
	}
	client, err := s.repos.Clients.FindByFullName(ctx, in.OrganizationID, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.OutcomeClientNotFound{Name: name}
	}
	if err != nil {
		return domain.OutcomeError{Err: err}
	}

	notes, err := webhook.RenderNote(rule.NotesTemplate, webhook.NoteData{
		Provider:    in.Provider,
		EventID:     ev.EventID,
		Title:       appt.Title,
		Description: appt.Description,
		Location:    appt.Location,
		Attendee:    name,
		Start:       appt.Start,
	})
	if err != nil {
		return domain.OutcomeError{Err: err}
	}

	clientID := client.ID
	trip := domain.Trip{
		OrganizationID:      in.OrganizationID,
		ClientID:            &clientID,
		PickupAddress:       firstNonBlank(rule.DefaultPickupLocation, client.HomeAddress),
		DropoffAddress:      strings.TrimSpace(appt.Location),
		ScheduledPickupTime: appt.Start.Add(-time.Duration(rule.PickupOffsetMinutes) * time.Minute),
		TripType:            rule.TripType,
		Status:              rule.InitialStatus(),
		Notes:               notes,
		Source:              domain.TripSourceWebhook,
	}
	outcome := s.createTrip(ctx, in.ID, ev.EventID, trip)

	if created, ok := outcome.(domain.OutcomeCreated); ok && created.Status == domain.TripStatusScheduled {
		trip.ID = created.TripID
		approval := notify.Approval{Trip: trip, RiderName: client.FullName(), Integration: in.Name}
		if err := s.notifier.TripNeedsApproval(ctx, approval); err != nil {
			slog.WarnContext(ctx, "approval notification failed", "trip_id", created.TripID, "error", err)
		}
	}
	return outcome
}

// createTrip inserts trip. With dedupe on, the delivery is claimed first in
// the shared guard and then in webhook_deliveries inside the same
// transaction as the insert, so a given event id yields at most one trip.
func (s *WebhookService) createTrip(ctx context.Context, integrationID uuid.UUID, eventID string, trip domain.Trip) domain.WebhookOutcome {
	guarded := false
	if s.opts.Dedupe {
		claimed, err := s.guard.Claim(ctx, integrationID, eventID)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "dedupe guard unavailable, relying on database claim", "error", err)
		case !claimed:
			return domain.OutcomeDuplicate{EventID: eventID}
		default:
			guarded = true
		}
	}

	var created domain.Trip
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		if s.opts.Dedupe {
			ok, err := r.Deliveries.Claim(ctx, integrationID, eventID)
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadyDelivered
			}
		}
		var err error
		if created, err = r.Trips.Create(ctx, trip); err != nil {
			return err
		}
		if s.opts.Dedupe {
			return r.Deliveries.AttachTrip(ctx, integrationID, eventID, created.ID)
		}
		return nil
	})
	if errors.Is(err, errAlreadyDelivered) {
		return domain.OutcomeDuplicate{EventID: eventID}
	}
	if err != nil {
		if guarded {
			if rerr := s.guard.Release(ctx, integrationID, eventID); rerr != nil {
				slog.WarnContext(ctx, "dedupe guard release failed", "error", rerr)
			}
		}
		return domain.OutcomeError{Err: err}
	}

	s.metrics.TripsCreated(ctx, domain.TripSourceWebhook, 1)
	return domain.OutcomeCreated{TripID: created.ID, Status: created.Status}
}

// recordOutcome copies o onto the log entry.
func recordOutcome(entry *domain.WebhookEventLog, o domain.WebhookOutcome) {
	entry.Status = o.LogStatus()
	entry.Reason = domain.OutcomeReason(o)
	switch o := o.(type) {
	case domain.OutcomeCreated:
		id := o.TripID
		entry.TripID = &id
		entry.TripsCreated = 1
	case domain.OutcomeError:
		entry.ErrorMessage = o.Err.Error()
	}
}

// payloadJSON returns body as a JSON document. Bodies that are not valid JSON
// are stored as a JSON string so they are still auditable.
func payloadJSON(body []byte) json.RawMessage {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
