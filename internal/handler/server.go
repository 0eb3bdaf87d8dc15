// Package handler implements the HTTP handlers for the dispatch API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, etc.) but share the same Server struct so they
// can access its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/service"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining the interface here, in the consumer package, lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	List(ctx context.Context, p domain.Principal, f domain.TripFilter, page domain.PaginationParams) ([]domain.Trip, int64, error)
	GetByID(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Trip, error)
	UpdateStatus(ctx context.Context, p domain.Principal, id uuid.UUID, status string) (domain.Trip, error)
	Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

// ExportServicer builds daily manifests.
type ExportServicer interface {
	Manifest(ctx context.Context, p domain.Principal, orgID uuid.UUID, day time.Time) ([]domain.ManifestRow, error)
}

// RecurringTripServicer manages weekly series.
type RecurringTripServicer interface {
	Create(ctx context.Context, p domain.Principal, in service.CreateRecurringTripInput) (service.CreateRecurringTripResult, error)
	Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.RecurringTrip, error)
	Delete(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID) (int64, error)
	Modify(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID, u domain.TripUpdates) (int64, error)
}

// WebhookIngester processes inbound calendar callbacks.
type WebhookIngester interface {
	Ingest(ctx context.Context, integrationID uuid.UUID, body []byte, signature string) (service.IngestResult, error)
}

// IntegrationServicer administers webhook integrations and their logs.
type IntegrationServicer interface {
	ListByOrganization(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookIntegration, error)
	Create(ctx context.Context, p domain.Principal, in domain.WebhookIntegration, rule domain.TripCreationRule) (domain.WebhookIntegration, domain.TripCreationRule, error)
	ListLogs(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookEventLog, error)
}

// PermissionRefresher clears cached permission lookups.
type PermissionRefresher interface {
	Refresh(ctx context.Context, p domain.Principal) error
}

// Deps are the services a Server dispatches to. Nil services are allowed in
// tests that exercise only part of the API.
type Deps struct {
	Trips        TripServicer
	Export       ExportServicer
	Recurring    RecurringTripServicer
	Webhooks     WebhookIngester
	Integrations IntegrationServicer
	Permissions  PermissionRefresher
	OpenAPI      []byte
}

// Server holds the dependencies shared by every handler.
type Server struct {
	trips        TripServicer
	export       ExportServicer
	recurring    RecurringTripServicer
	webhooks     WebhookIngester
	integrations IntegrationServicer
	permissions  PermissionRefresher
	openAPI      []byte
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	return &Server{
		trips:        d.Trips,
		export:       d.Export,
		recurring:    d.Recurring,
		webhooks:     d.Webhooks,
		integrations: d.Integrations,
		permissions:  d.Permissions,
		openAPI:      d.OpenAPI,
	}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(Deps{})
}

// Routes returns the API router. requireAuth guards every route except the
// health check, the OpenAPI document and webhook callbacks, which carry
// their own HMAC signature. A nil requireAuth leaves the routes open.
func (s *Server) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Post("/webhook/{integrationId}", s.ReceiveWebhook)

	r.Group(func(r chi.Router) {
		if requireAuth != nil {
			r.Use(requireAuth)
		}

		r.Post("/recurring-trips", s.CreateRecurringTrip)
		r.Get("/recurring-trips/{id}", s.GetRecurringTrip)
		r.Delete("/recurring-trips/{id}", s.DeleteRecurringTrip)
		r.Patch("/recurring-trips/{id}/modify", s.ModifyRecurringTrip)

		r.Get("/trips", s.ListTrips)
		r.Get("/trips/export", s.ExportTrips)
		r.Get("/trips/{id}", s.GetTrip)
		r.Patch("/trips/{id}/status", s.UpdateTripStatus)
		r.Delete("/trips/{id}", s.DeleteTrip)

		r.Get("/integrations/{organizationId}", s.ListIntegrations)
		r.Post("/integrations", s.CreateIntegration)
		r.Get("/logs/{organizationId}", s.ListWebhookLogs)

		r.Post("/admin/permissions/refresh", s.RefreshPermissions)
	})
	return r
}
