package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nemt-dispatch/internal/auth"
	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/handler"
	"github.com/pkordes/nemt-dispatch/internal/service"
)

// Each mock is a test double for one handler interface.
// Set only the method fields your test needs.

type mockTripServicer struct {
	list         func(ctx context.Context, p domain.Principal, f domain.TripFilter, page domain.PaginationParams) ([]domain.Trip, int64, error)
	getByID      func(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Trip, error)
	updateStatus func(ctx context.Context, p domain.Principal, id uuid.UUID, status string) (domain.Trip, error)
	delete       func(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

func (m *mockTripServicer) List(ctx context.Context, p domain.Principal, f domain.TripFilter, page domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.list(ctx, p, f, page)
}
func (m *mockTripServicer) GetByID(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, p, id)
}
func (m *mockTripServicer) UpdateStatus(ctx context.Context, p domain.Principal, id uuid.UUID, status string) (domain.Trip, error) {
	return m.updateStatus(ctx, p, id, status)
}
func (m *mockTripServicer) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	return m.delete(ctx, p, id)
}

type mockExportServicer struct {
	manifest func(ctx context.Context, p domain.Principal, orgID uuid.UUID, day time.Time) ([]domain.ManifestRow, error)
}

func (m *mockExportServicer) Manifest(ctx context.Context, p domain.Principal, orgID uuid.UUID, day time.Time) ([]domain.ManifestRow, error) {
	return m.manifest(ctx, p, orgID, day)
}

type mockRecurringServicer struct {
	create func(ctx context.Context, p domain.Principal, in service.CreateRecurringTripInput) (service.CreateRecurringTripResult, error)
	get    func(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.RecurringTrip, error)
	delete func(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID) (int64, error)
	modify func(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID, u domain.TripUpdates) (int64, error)
}

func (m *mockRecurringServicer) Create(ctx context.Context, p domain.Principal, in service.CreateRecurringTripInput) (service.CreateRecurringTripResult, error) {
	return m.create(ctx, p, in)
}
func (m *mockRecurringServicer) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.RecurringTrip, error) {
	return m.get(ctx, p, id)
}
func (m *mockRecurringServicer) Delete(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID) (int64, error) {
	return m.delete(ctx, p, id, scope, instanceID)
}
func (m *mockRecurringServicer) Modify(ctx context.Context, p domain.Principal, id uuid.UUID, scope domain.Scope, instanceID *uuid.UUID, u domain.TripUpdates) (int64, error) {
	return m.modify(ctx, p, id, scope, instanceID, u)
}

type mockWebhookIngester struct {
	ingest func(ctx context.Context, integrationID uuid.UUID, body []byte, signature string) (service.IngestResult, error)
}

func (m *mockWebhookIngester) Ingest(ctx context.Context, integrationID uuid.UUID, body []byte, signature string) (service.IngestResult, error) {
	return m.ingest(ctx, integrationID, body, signature)
}

type mockIntegrationServicer struct {
	list     func(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookIntegration, error)
	create   func(ctx context.Context, p domain.Principal, in domain.WebhookIntegration, rule domain.TripCreationRule) (domain.WebhookIntegration, domain.TripCreationRule, error)
	listLogs func(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookEventLog, error)
}

func (m *mockIntegrationServicer) ListByOrganization(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookIntegration, error) {
	return m.list(ctx, p, orgID)
}
func (m *mockIntegrationServicer) Create(ctx context.Context, p domain.Principal, in domain.WebhookIntegration, rule domain.TripCreationRule) (domain.WebhookIntegration, domain.TripCreationRule, error) {
	return m.create(ctx, p, in, rule)
}
func (m *mockIntegrationServicer) ListLogs(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookEventLog, error) {
	return m.listLogs(ctx, p, orgID)
}

type permissionRefresherFunc func(ctx context.Context, p domain.Principal) error

func (f permissionRefresherFunc) Refresh(ctx context.Context, p domain.Principal) error {
	return f(ctx, p)
}

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.TripServicer          = (*mockTripServicer)(nil)
	_ handler.ExportServicer        = (*mockExportServicer)(nil)
	_ handler.RecurringTripServicer = (*mockRecurringServicer)(nil)
	_ handler.WebhookIngester       = (*mockWebhookIngester)(nil)
	_ handler.IntegrationServicer   = (*mockIntegrationServicer)(nil)
	_ handler.PermissionRefresher   = permissionRefresherFunc(nil)
)

// ---- helpers ---------------------------------------------------------------

var (
	orgID         = uuid.New()
	testPrincipal = domain.Principal{UserID: uuid.New(), OrganizationID: orgID, Role: domain.RoleProgramAdmin}
)

// asPrincipal stands in for the bearer-token middleware.
func asPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), testPrincipal)))
	})
}

// newHTTPHandler wires a Server with the given mocks into the chi router,
// mirroring how the serve command wires it in production.
func newHTTPHandler(d handler.Deps) http.Handler {
	return handler.NewServer(d).Routes(asPrincipal)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, body *bytes.Buffer) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}
