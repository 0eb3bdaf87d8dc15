package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/service"
	"github.com/pkordes/nemt-dispatch/internal/webhook"
	"github.com/pkordes/nemt-dispatch/testutil"
)

// webhookNow is 2025-06-04 10:00 UTC; appointments default to 15:00.
var webhookNow = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

const webhookSecret = "whsec_test"

// webhookWorld wires a WebhookService over in-memory repos.
type webhookWorld struct {
	integration domain.WebhookIntegration
	rule        domain.TripCreationRule
	client      domain.Client
	trips       []domain.Trip
	tripErr     error
	logs        *memEventLogs
	deliveries  *memDeliveries
	notifier    *recordingNotifier
	guard       *mockGuard
	tx          *fakeTx
	opts        service.WebhookOptions
}

func newWebhookWorld(t *testing.T) *webhookWorld {
	t.Helper()
	w := &webhookWorld{
		integration: domain.WebhookIntegration{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Provider:       domain.ProviderRitten,
			Name:           "Ritten main calendar",
			SecretKey:      webhookSecret,
			IsActive:       true,
		},
		rule: domain.TripCreationRule{
			PickupOffsetMinutes: 30,
			TripType:            domain.TripTypeRoundTrip,
			IsActive:            true,
		},
		client: domain.Client{
			ID:             uuid.New(),
			OrganizationID: orgID,
			FirstName:      "Jane",
			LastName:       "Doe",
			HomeAddress:    "1 Home St",
		},
		logs:       &memEventLogs{},
		deliveries: newMemDeliveries(),
		notifier:   &recordingNotifier{},
		opts:       service.WebhookOptions{LeadTime: 2 * time.Hour, Dedupe: true},
	}
	return w
}

func (w *webhookWorld) service(t *testing.T) *service.WebhookService {
	t.Helper()
	integrations := &mockIntegrationRepo{
		getByID: func(_ context.Context, id uuid.UUID) (domain.WebhookIntegration, error) {
			if id != w.integration.ID {
				return domain.WebhookIntegration{}, domain.ErrNotFound
			}
			return w.integration, nil
		},
		activeRule: func(context.Context, uuid.UUID) (domain.TripCreationRule, error) {
			if !w.rule.IsActive {
				return domain.TripCreationRule{}, domain.ErrNotFound
			}
			return w.rule, nil
		},
	}
	clients := &mockClientRepo{
		findByFullName: func(_ context.Context, _ uuid.UUID, name string) (domain.Client, error) {
			if name != w.client.FullName() {
				return domain.Client{}, domain.ErrNotFound
			}
			return w.client, nil
		},
	}
	trips := &mockTripRepo{
		create: func(_ context.Context, trip domain.Trip) (domain.Trip, error) {
			if w.tripErr != nil {
				return domain.Trip{}, w.tripErr
			}
			trip.ID = uuid.New()
			w.trips = append(w.trips, trip)
			return trip, nil
		},
	}
	repos := repo.Repos{
		Trips:        trips,
		Clients:      clients,
		Integrations: integrations,
		EventLogs:    w.logs,
		Deliveries:   w.deliveries,
	}
	w.tx = &fakeTx{repos: repos}

	decoder, err := webhook.NewRittenDecoder()
	require.NoError(t, err)

	deps := service.WebhookDeps{
		Repos:    repos,
		Tx:       w.tx,
		Decoder:  decoder,
		Notifier: w.notifier,
		Now:      testutil.NewClock(webhookNow).Now,
	}
	if w.guard != nil {
		deps.Guard = w.guard
	}
	return service.NewWebhookService(deps, w.opts)
}

type apptOpts struct {
	eventID  string
	title    string
	attendee string
	start    time.Time
}

func rittenBody(t *testing.T, o apptOpts) []byte {
	t.Helper()
	if o.eventID == "" {
		o.eventID = "evt_1"
	}
	if o.title == "" {
		o.title = "Dialysis session"
	}
	if o.attendee == "" {
		o.attendee = "Jane Doe"
	}
	if o.start.IsZero() {
		o.start = webhookNow.Add(5 * time.Hour)
	}
	body, err := json.Marshal(map[string]any{
		"event_type":  "appointment.created",
		"event_id":    o.eventID,
		"calendar_id": "cal_1",
		"appointment": map[string]any{
			"id":             "appt_1",
			"title":          o.title,
			"start_datetime": o.start.Format(time.RFC3339),
			"end_datetime":   o.start.Add(time.Hour).Format(time.RFC3339),
			"attendees":      []map[string]string{{"name": o.attendee}},
			"location":       "2 Clinic Rd",
		},
	})
	require.NoError(t, err)
	return body
}

func ingest(t *testing.T, svc *service.WebhookService, w *webhookWorld, body []byte) service.IngestResult {
	t.Helper()
	res, err := svc.Ingest(context.Background(), w.integration.ID, body, webhook.Sign(webhookSecret, body))
	require.NoError(t, err)
	return res
}

// ---- hard failures ---------------------------------------------------------

func TestWebhookService_UnknownIntegration(t *testing.T) {
	w := newWebhookWorld(t)
	body := rittenBody(t, apptOpts{})

	_, err := w.service(t).Ingest(context.Background(), uuid.New(), body, webhook.Sign(webhookSecret, body))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, w.logs.inserted)
}

func TestWebhookService_InactiveIntegration(t *testing.T) {
	w := newWebhookWorld(t)
	w.integration.IsActive = false
	body := rittenBody(t, apptOpts{})

	_, err := w.service(t).Ingest(context.Background(), w.integration.ID, body, webhook.Sign(webhookSecret, body))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWebhookService_BadSignature(t *testing.T) {
	w := newWebhookWorld(t)
	body := rittenBody(t, apptOpts{})
	sig := webhook.Sign(webhookSecret, body)
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] ^= 0x01

	_, err := w.service(t).Ingest(context.Background(), w.integration.ID, tampered, sig)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, w.logs.inserted, "rejected deliveries are not logged")
	assert.Empty(t, w.trips)
}

func TestWebhookService_NoSecretAcceptsUnsigned(t *testing.T) {
	w := newWebhookWorld(t)
	w.integration.SecretKey = ""

	res, err := w.service(t).Ingest(context.Background(), w.integration.ID, rittenBody(t, apptOpts{}), "")

	require.NoError(t, err)
	assert.True(t, res.Processed())
}

// ---- created ---------------------------------------------------------------

func TestWebhookService_CreatesTrip(t *testing.T) {
	w := newWebhookWorld(t)
	svc := w.service(t)

	res := ingest(t, svc, w, rittenBody(t, apptOpts{}))

	created, ok := res.Outcome.(domain.OutcomeCreated)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.True(t, res.Processed())
	assert.Equal(t, 1, res.TripsCreated())

	require.Len(t, w.trips, 1)
	trip := w.trips[0]
	assert.Equal(t, created.TripID, trip.ID)
	assert.Equal(t, w.client.ID, *trip.ClientID)
	assert.Equal(t, time.Date(2025, 6, 4, 14, 30, 0, 0, time.UTC), trip.ScheduledPickupTime.UTC(), "30 minutes before the appointment")
	assert.Equal(t, "1 Home St", trip.PickupAddress, "falls back to the client's home")
	assert.Equal(t, "2 Clinic Rd", trip.DropoffAddress)
	assert.Equal(t, domain.TripStatusConfirmed, trip.Status)
	assert.Equal(t, domain.TripSourceWebhook, trip.Source)
	assert.Equal(t, "Auto-created from ritten appointment: Dialysis session", trip.Notes)
	assert.Empty(t, w.notifier.sent, "confirmed trips need no approval")
}

func TestWebhookService_LogsPendingThenFinal(t *testing.T) {
	w := newWebhookWorld(t)
	body := rittenBody(t, apptOpts{eventID: "evt_42"})

	res := ingest(t, w.service(t), w, body)

	require.Len(t, w.logs.inserted, 1)
	assert.Equal(t, domain.WebhookLogPending, w.logs.inserted[0].Status)
	assert.JSONEq(t, string(body), string(w.logs.inserted[0].Payload))

	require.Len(t, w.logs.finalized, 1)
	final := w.logs.last()
	assert.Equal(t, res.LogID, final.ID)
	assert.Equal(t, domain.WebhookLogCreated, final.Status)
	assert.Equal(t, "evt_42", final.ExternalEventID)
	assert.Equal(t, "appointment.created", final.EventType)
	assert.Equal(t, 1, final.TripsCreated)
	require.NotNil(t, final.TripID)
}

func TestWebhookService_DefaultPickupLocationAndNotesTemplate(t *testing.T) {
	w := newWebhookWorld(t)
	w.rule.DefaultPickupLocation = "Main Depot"
	w.rule.NotesTemplate = `{{ .Title | upper }} for {{ .Attendee }}`

	ingest(t, w.service(t), w, rittenBody(t, apptOpts{}))

	require.Len(t, w.trips, 1)
	assert.Equal(t, "Main Depot", w.trips[0].PickupAddress)
	assert.Equal(t, "DIALYSIS SESSION for Jane Doe", w.trips[0].Notes)
}

func TestWebhookService_RequiresApprovalNotifies(t *testing.T) {
	w := newWebhookWorld(t)
	w.rule.RequiresApproval = true

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{}))

	created := res.Outcome.(domain.OutcomeCreated)
	assert.Equal(t, domain.TripStatusScheduled, created.Status)
	require.Len(t, w.notifier.sent, 1)
	sent := w.notifier.sent[0]
	assert.Equal(t, "Jane Doe", sent.RiderName)
	assert.Equal(t, created.TripID, sent.Trip.ID)
	assert.Equal(t, "Ritten main calendar", sent.Integration)
}

func TestWebhookService_NotificationFailureIsNotFatal(t *testing.T) {
	w := newWebhookWorld(t)
	w.rule.RequiresApproval = true
	w.notifier.err = errors.New("slack down")

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{}))

	assert.True(t, res.Processed())
}

// ---- soft outcomes ---------------------------------------------------------

func TestWebhookService_KeywordFiltered(t *testing.T) {
	w := newWebhookWorld(t)
	w.integration.KeywordFilters = []string{"transport"}

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{title: "Annual checkup"}))

	filtered, ok := res.Outcome.(domain.OutcomeFiltered)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.Contains(t, filtered.Reason, "keyword")
	assert.False(t, res.Processed())
	assert.Empty(t, w.trips)

	final := w.logs.last()
	assert.Equal(t, domain.WebhookLogFiltered, final.Status)
	assert.NotEmpty(t, final.Reason)
	assert.Empty(t, final.ErrorMessage, "filtering is not an error")
	assert.Zero(t, final.TripsCreated)
}

func TestWebhookService_LeadTimeTooShort(t *testing.T) {
	w := newWebhookWorld(t)

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{start: webhookNow.Add(time.Hour)}))

	assert.IsType(t, domain.OutcomeFiltered{}, res.Outcome)
	assert.Empty(t, w.trips)
}

func TestWebhookService_LeadTimeBoundaryAccepted(t *testing.T) {
	w := newWebhookWorld(t)

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{start: webhookNow.Add(2 * time.Hour)}))

	assert.True(t, res.Processed())
}

func TestWebhookService_ClientNotFound(t *testing.T) {
	w := newWebhookWorld(t)

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{attendee: "Janet Doe"}))

	notFound, ok := res.Outcome.(domain.OutcomeClientNotFound)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.Equal(t, "Janet Doe", notFound.Name)
	assert.Equal(t, domain.WebhookLogClientNotFound, w.logs.last().Status)
	assert.Empty(t, w.trips)
}

func TestWebhookService_UnknownProviderFiltered(t *testing.T) {
	w := newWebhookWorld(t)
	w.integration.Provider = "acme"

	res := ingest(t, w.service(t), w, []byte(`{"anything":true}`))

	assert.Equal(t, domain.OutcomeFiltered{Reason: `provider "acme" has no trip mapping`}, res.Outcome)
}

func TestWebhookService_SchemaViolationIsLoggedError(t *testing.T) {
	w := newWebhookWorld(t)
	body := []byte(`{"event_type":"appointment.created"}`)

	res := ingest(t, w.service(t), w, body)

	failed, ok := res.Outcome.(domain.OutcomeError)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.ErrorIs(t, failed.Err, domain.ErrValidation)
	final := w.logs.last()
	assert.Equal(t, domain.WebhookLogError, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
}

func TestWebhookService_NonJSONBodyStillAudited(t *testing.T) {
	w := newWebhookWorld(t)

	ingest(t, w.service(t), w, []byte("not json"))

	require.Len(t, w.logs.inserted, 1)
	assert.JSONEq(t, `"not json"`, string(w.logs.inserted[0].Payload))
	assert.Equal(t, domain.WebhookLogError, w.logs.last().Status)
}

func TestWebhookService_NoActiveRule(t *testing.T) {
	w := newWebhookWorld(t)
	w.rule.IsActive = false

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{}))

	assert.IsType(t, domain.OutcomeError{}, res.Outcome)
	assert.Contains(t, w.logs.last().ErrorMessage, "no active trip creation rule")
}

func TestWebhookService_InsertFailureIsOutcomeError(t *testing.T) {
	w := newWebhookWorld(t)
	w.tripErr = errors.New("connection reset")

	res := ingest(t, w.service(t), w, rittenBody(t, apptOpts{}))

	assert.IsType(t, domain.OutcomeError{}, res.Outcome)
	assert.Equal(t, 0, res.TripsCreated())
}

// ---- duplicate deliveries --------------------------------------------------

// The same event delivered twice produces one trip when dedupe is on.
func TestWebhookService_DuplicateDelivery_Deduplicated(t *testing.T) {
	w := newWebhookWorld(t)
	svc := w.service(t)
	body := rittenBody(t, apptOpts{eventID: "evt_dup"})

	first := ingest(t, svc, w, body)
	second := ingest(t, svc, w, body)

	assert.True(t, first.Processed())
	assert.Equal(t, domain.OutcomeDuplicate{EventID: "evt_dup"}, second.Outcome)
	assert.Len(t, w.trips, 1)
	assert.Equal(t, domain.WebhookLogDuplicate, w.logs.last().Status)
	assert.Equal(t, w.trips[0].ID, w.deliveries.claimed[w.integration.ID.String()+"/evt_dup"])
}

// With dedupe off every delivery creates a trip, as the callback protocol
// itself carries no idempotency guarantee.
func TestWebhookService_DuplicateDelivery_DedupeDisabled(t *testing.T) {
	w := newWebhookWorld(t)
	w.opts.Dedupe = false
	svc := w.service(t)
	body := rittenBody(t, apptOpts{eventID: "evt_dup"})

	first := ingest(t, svc, w, body)
	second := ingest(t, svc, w, body)

	assert.True(t, first.Processed())
	assert.True(t, second.Processed())
	assert.Len(t, w.trips, 2)
	assert.Empty(t, w.deliveries.claimed)
}

func TestWebhookService_GuardShortCircuitsDuplicate(t *testing.T) {
	w := newWebhookWorld(t)
	w.guard = &mockGuard{claim: func(context.Context, uuid.UUID, string) (bool, error) { return false, nil }}
	svc := w.service(t)

	res := ingest(t, svc, w, rittenBody(t, apptOpts{}))

	assert.IsType(t, domain.OutcomeDuplicate{}, res.Outcome)
	assert.Zero(t, w.tx.calls, "no transaction for a guarded duplicate")
}

func TestWebhookService_GuardReleasedWhenInsertFails(t *testing.T) {
	w := newWebhookWorld(t)
	w.guard = &mockGuard{claim: func(context.Context, uuid.UUID, string) (bool, error) { return true, nil }}
	w.tripErr = errors.New("insert failed")

	ingest(t, w.service(t), w, rittenBody(t, apptOpts{}))

	assert.Equal(t, 1, w.guard.released)
}

func TestWebhookService_GuardErrorFallsBackToDatabase(t *testing.T) {
	w := newWebhookWorld(t)
	w.guard = &mockGuard{claim: func(context.Context, uuid.UUID, string) (bool, error) {
		return false, errors.New("redis unavailable")
	}}
	svc := w.service(t)
	body := rittenBody(t, apptOpts{})

	first := ingest(t, svc, w, body)
	second := ingest(t, svc, w, body)

	assert.True(t, first.Processed())
	assert.IsType(t, domain.OutcomeDuplicate{}, second.Outcome)
	assert.Len(t, w.trips, 1)
}
