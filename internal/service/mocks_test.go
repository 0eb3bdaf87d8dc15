package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/dedupe"
	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/notify"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/service"
)

// Hand-written test doubles. Each method is a function field: set only the
// ones a test needs. Calling an unset field panics, which fails the test and
// points at the unexpected call.

// ---- TripRepo --------------------------------------------------------------

type mockTripRepo struct {
	create         func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	createMany     func(ctx context.Context, trips []domain.Trip) ([]domain.Trip, error)
	getByID        func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	listPaged      func(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)
	manifest       func(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.ManifestRow, error)
	updateStatus   func(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error)
	delete         func(ctx context.Context, id uuid.UUID) error
	deleteInstance func(ctx context.Context, templateID, tripID uuid.UUID) error
	deleteFuture   func(ctx context.Context, templateID uuid.UUID, now time.Time) (int64, error)
	patchInstance  func(ctx context.Context, templateID, tripID uuid.UUID, u domain.TripUpdates, tz string) error
	patchFuture    func(ctx context.Context, templateID uuid.UUID, now time.Time, u domain.TripUpdates, tz string) (int64, error)
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) CreateMany(ctx context.Context, trips []domain.Trip) ([]domain.Trip, error) {
	return m.createMany(ctx, trips)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.listPaged(ctx, f, p)
}
func (m *mockTripRepo) Manifest(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.ManifestRow, error) {
	return m.manifest(ctx, orgID, from, to)
}
func (m *mockTripRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	return m.updateStatus(ctx, id, status)
}
func (m *mockTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockTripRepo) DeleteInstance(ctx context.Context, templateID, tripID uuid.UUID) error {
	return m.deleteInstance(ctx, templateID, tripID)
}
func (m *mockTripRepo) DeleteFuture(ctx context.Context, templateID uuid.UUID, now time.Time) (int64, error) {
	return m.deleteFuture(ctx, templateID, now)
}
func (m *mockTripRepo) PatchInstance(ctx context.Context, templateID, tripID uuid.UUID, u domain.TripUpdates, tz string) error {
	return m.patchInstance(ctx, templateID, tripID, u, tz)
}
func (m *mockTripRepo) PatchFuture(ctx context.Context, templateID uuid.UUID, now time.Time, u domain.TripUpdates, tz string) (int64, error) {
	return m.patchFuture(ctx, templateID, now, u, tz)
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

// ---- RecurringTripRepo -----------------------------------------------------

type mockTemplateRepo struct {
	create     func(ctx context.Context, t domain.RecurringTrip) (domain.RecurringTrip, error)
	getByID    func(ctx context.Context, id uuid.UUID) (domain.RecurringTrip, error)
	deactivate func(ctx context.Context, id uuid.UUID) error
	patch      func(ctx context.Context, id uuid.UUID, u domain.TripUpdates) (domain.RecurringTrip, error)
}

func (m *mockTemplateRepo) Create(ctx context.Context, t domain.RecurringTrip) (domain.RecurringTrip, error) {
	return m.create(ctx, t)
}
func (m *mockTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.RecurringTrip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTemplateRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.deactivate(ctx, id)
}
func (m *mockTemplateRepo) Patch(ctx context.Context, id uuid.UUID, u domain.TripUpdates) (domain.RecurringTrip, error) {
	return m.patch(ctx, id, u)
}

var _ repo.RecurringTripRepo = (*mockTemplateRepo)(nil)

// ---- ClientRepo ------------------------------------------------------------

type mockClientRepo struct {
	getByID        func(ctx context.Context, id uuid.UUID) (domain.Client, error)
	findByFullName func(ctx context.Context, orgID uuid.UUID, name string) (domain.Client, error)
	getGroup       func(ctx context.Context, id uuid.UUID) (domain.ClientGroup, error)
}

func (m *mockClientRepo) Create(context.Context, domain.Client) (domain.Client, error) {
	panic("unexpected ClientRepo.Create")
}
func (m *mockClientRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	return m.getByID(ctx, id)
}
func (m *mockClientRepo) FindByFullName(ctx context.Context, orgID uuid.UUID, name string) (domain.Client, error) {
	return m.findByFullName(ctx, orgID, name)
}
func (m *mockClientRepo) CreateGroup(context.Context, domain.ClientGroup) (domain.ClientGroup, error) {
	panic("unexpected ClientRepo.CreateGroup")
}
func (m *mockClientRepo) GetGroup(ctx context.Context, id uuid.UUID) (domain.ClientGroup, error) {
	return m.getGroup(ctx, id)
}

var _ repo.ClientRepo = (*mockClientRepo)(nil)

// ---- IntegrationRepo -------------------------------------------------------

type mockIntegrationRepo struct {
	create             func(ctx context.Context, in domain.WebhookIntegration) (domain.WebhookIntegration, error)
	getByID            func(ctx context.Context, id uuid.UUID) (domain.WebhookIntegration, error)
	listByOrganization func(ctx context.Context, orgID uuid.UUID) ([]domain.WebhookIntegration, error)
	createRule         func(ctx context.Context, rule domain.TripCreationRule) (domain.TripCreationRule, error)
	activeRule         func(ctx context.Context, integrationID uuid.UUID) (domain.TripCreationRule, error)
}

func (m *mockIntegrationRepo) Create(ctx context.Context, in domain.WebhookIntegration) (domain.WebhookIntegration, error) {
	return m.create(ctx, in)
}
func (m *mockIntegrationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.WebhookIntegration, error) {
	return m.getByID(ctx, id)
}
func (m *mockIntegrationRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.WebhookIntegration, error) {
	return m.listByOrganization(ctx, orgID)
}
func (m *mockIntegrationRepo) CreateRule(ctx context.Context, rule domain.TripCreationRule) (domain.TripCreationRule, error) {
	return m.createRule(ctx, rule)
}
func (m *mockIntegrationRepo) ActiveRule(ctx context.Context, integrationID uuid.UUID) (domain.TripCreationRule, error) {
	return m.activeRule(ctx, integrationID)
}

var _ repo.IntegrationRepo = (*mockIntegrationRepo)(nil)

// ---- EventLogRepo ----------------------------------------------------------

// memEventLogs records inserts and finalisations instead of using func fields:
// nearly every webhook test asserts on the log row.
type memEventLogs struct {
	inserted  []domain.WebhookEventLog
	finalized []domain.WebhookEventLog
	recent    []domain.WebhookEventLog
}

func (m *memEventLogs) Insert(_ context.Context, l domain.WebhookEventLog) (domain.WebhookEventLog, error) {
	l.ID = uuid.New()
	l.Status = domain.WebhookLogPending
	m.inserted = append(m.inserted, l)
	return l, nil
}
func (m *memEventLogs) Finalize(_ context.Context, l domain.WebhookEventLog) error {
	for _, f := range m.finalized {
		if f.ID == l.ID {
			return domain.ErrConflict
		}
	}
	m.finalized = append(m.finalized, l)
	return nil
}
func (m *memEventLogs) ListRecent(_ context.Context, _ uuid.UUID, limit int) ([]domain.WebhookEventLog, error) {
	if len(m.recent) > limit {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}
func (m *memEventLogs) PruneBefore(context.Context, time.Time) (int64, error) { return 0, nil }

// last returns the most recently finalised log row.
func (m *memEventLogs) last() domain.WebhookEventLog {
	return m.finalized[len(m.finalized)-1]
}

var _ repo.EventLogRepo = (*memEventLogs)(nil)

// ---- DeliveryRepo ----------------------------------------------------------

// memDeliveries behaves like the webhook_deliveries primary key.
type memDeliveries struct {
	claimed map[string]uuid.UUID
}

func newMemDeliveries() *memDeliveries {
	return &memDeliveries{claimed: map[string]uuid.UUID{}}
}

func (m *memDeliveries) Claim(_ context.Context, integrationID uuid.UUID, eventID string) (bool, error) {
	key := integrationID.String() + "/" + eventID
	if _, ok := m.claimed[key]; ok {
		return false, nil
	}
	m.claimed[key] = uuid.Nil
	return true, nil
}
func (m *memDeliveries) AttachTrip(_ context.Context, integrationID uuid.UUID, eventID string, tripID uuid.UUID) error {
	m.claimed[integrationID.String()+"/"+eventID] = tripID
	return nil
}

var _ repo.DeliveryRepo = (*memDeliveries)(nil)

// ---- Transactor ------------------------------------------------------------

// fakeTx runs fn against fixed repos. It does not roll anything back, so
// tests assert on the returned error and on which repo calls were made.
type fakeTx struct {
	repos repo.Repos
	calls int
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(repo.Repos) error) error {
	f.calls++
	return fn(f.repos)
}

var _ repo.Transactor = (*fakeTx)(nil)

// ---- Authorizer ------------------------------------------------------------

type mockAuthz struct {
	require func(ctx context.Context, p domain.Principal, perm domain.Permission, orgID uuid.UUID) error
	flushed int
}

func (m *mockAuthz) Require(ctx context.Context, p domain.Principal, perm domain.Permission, orgID uuid.UUID) error {
	if m.require == nil {
		return nil
	}
	return m.require(ctx, p, perm, orgID)
}
func (m *mockAuthz) Flush() { m.flushed++ }

var _ service.FlushingAuthorizer = (*mockAuthz)(nil)

// allow grants everything.
func allow() *mockAuthz { return &mockAuthz{} }

// deny refuses everything with domain.ErrForbidden.
func deny() *mockAuthz {
	return &mockAuthz{require: func(context.Context, domain.Principal, domain.Permission, uuid.UUID) error {
		return domain.ErrForbidden
	}}
}

// ---- Guard and Notifier ----------------------------------------------------

type mockGuard struct {
	claim    func(ctx context.Context, integrationID uuid.UUID, eventID string) (bool, error)
	released int
}

func (m *mockGuard) Claim(ctx context.Context, integrationID uuid.UUID, eventID string) (bool, error) {
	return m.claim(ctx, integrationID, eventID)
}
func (m *mockGuard) Release(context.Context, uuid.UUID, string) error {
	m.released++
	return nil
}

var _ dedupe.Guard = (*mockGuard)(nil)

type recordingNotifier struct {
	sent []notify.Approval
	err  error
}

func (r *recordingNotifier) TripNeedsApproval(_ context.Context, a notify.Approval) error {
	r.sent = append(r.sent, a)
	return r.err
}

var _ notify.Notifier = (*recordingNotifier)(nil)

// ---- helpers ---------------------------------------------------------------

var (
	orgID     = uuid.MustParse("7f1d7d1e-0000-4000-8000-000000000001")
	principal = domain.Principal{
		UserID:         uuid.MustParse("7f1d7d1e-0000-4000-8000-0000000000aa"),
		OrganizationID: orgID,
		Role:           domain.RoleProgramAdmin,
	}
)
