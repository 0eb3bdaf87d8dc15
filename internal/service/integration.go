package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/internal/webhook"
)

// RecentLogLimit is how many event logs ListLogs returns.
const RecentLogLimit = 100

// maxPickupOffset bounds TripCreationRule.PickupOffsetMinutes to one day.
const maxPickupOffset = 24 * 60

// IntegrationService administers webhook integrations and their logs.
type IntegrationService struct {
	integrations repo.IntegrationRepo
	logs         repo.EventLogRepo
	tx           repo.Transactor
	authz        Authorizer
}

// NewIntegrationService constructs an IntegrationService.
func NewIntegrationService(integrations repo.IntegrationRepo, logs repo.EventLogRepo, tx repo.Transactor, authz Authorizer) *IntegrationService {
	return &IntegrationService{integrations: integrations, logs: logs, tx: tx, authz: authz}
}

// ListByOrganization returns an organization's integrations with their
// secrets removed.
func (s *IntegrationService) ListByOrganization(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookIntegration, error) {
	if err := s.authz.Require(ctx, p, domain.PermIntegrationsRead, orgID); err != nil {
		return nil, fmt.Errorf("service.IntegrationService.ListByOrganization: %w", err)
	}
	list, err := s.integrations.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("service.IntegrationService.ListByOrganization: %w", err)
	}
	out := make([]domain.WebhookIntegration, len(list))
	for i, in := range list {
		in.SecretKey = ""
		out[i] = in
	}
	return out, nil
}

// Create stores an integration and its trip creation rule together. When no
// secret is supplied one is generated. The returned integration carries the
// secret; this is the only time it leaves the service.
func (s *IntegrationService) Create(ctx context.Context, p domain.Principal, in domain.WebhookIntegration, rule domain.TripCreationRule) (domain.WebhookIntegration, domain.TripCreationRule, error) {
	if err := s.authz.Require(ctx, p, domain.PermIntegrationsManage, in.OrganizationID); err != nil {
		return domain.WebhookIntegration{}, domain.TripCreationRule{}, fmt.Errorf("service.IntegrationService.Create: %w", err)
	}
	in, rule, err := normalizeIntegration(in, rule)
	if err != nil {
		return domain.WebhookIntegration{}, domain.TripCreationRule{}, err
	}

	var (
		created     domain.WebhookIntegration
		createdRule domain.TripCreationRule
	)
	err = s.tx.WithinTx(ctx, func(r repo.Repos) error {
		var err error
		if created, err = r.Integrations.Create(ctx, in); err != nil {
			return err
		}
		rule.IntegrationID = created.ID
		createdRule, err = r.Integrations.CreateRule(ctx, rule)
		return err
	})
	if err != nil {
		return domain.WebhookIntegration{}, domain.TripCreationRule{}, fmt.Errorf("service.IntegrationService.Create: %w", err)
	}
	return created, createdRule, nil
}

// ListLogs returns the organization's RecentLogLimit most recent event logs,
// newest first.
func (s *IntegrationService) ListLogs(ctx context.Context, p domain.Principal, orgID uuid.UUID) ([]domain.WebhookEventLog, error) {
	if err := s.authz.Require(ctx, p, domain.PermIntegrationsRead, orgID); err != nil {
		return nil, fmt.Errorf("service.IntegrationService.ListLogs: %w", err)
	}
	logs, err := s.logs.ListRecent(ctx, orgID, RecentLogLimit)
	if err != nil {
		return nil, fmt.Errorf("service.IntegrationService.ListLogs: %w", err)
	}
	if logs == nil {
		return []domain.WebhookEventLog{}, nil
	}
	return logs, nil
}

func normalizeIntegration(in domain.WebhookIntegration, rule domain.TripCreationRule) (domain.WebhookIntegration, domain.TripCreationRule, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.Name = strings.TrimSpace(in.Name)
	if in.Provider == "" || in.Name == "" {
		return in, rule, fmt.Errorf("%w: provider and name are required", domain.ErrValidation)
	}
	if in.SecretKey == "" {
		in.SecretKey = webhook.GenerateSecret()
	}
	in.KeywordFilters = compact(in.KeywordFilters)
	in.AttendeeFilters = compact(in.AttendeeFilters)
	in.IsActive = true

	if rule.PickupOffsetMinutes < 0 || rule.PickupOffsetMinutes > maxPickupOffset {
		return in, rule, fmt.Errorf("%w: pickup offset must be between 0 and %d minutes", domain.ErrValidation, maxPickupOffset)
	}
	if rule.TripType == "" {
		rule.TripType = domain.TripTypeOneWay
	}
	if _, err := domain.ParseTripType(string(rule.TripType)); err != nil {
		return in, rule, err
	}
	if _, err := webhook.RenderNote(rule.NotesTemplate, webhook.NoteData{}); err != nil {
		return in, rule, fmt.Errorf("%w: notes template: %v", domain.ErrValidation, err)
	}
	rule.IsActive = true
	return in, rule, nil
}

// compact trims entries and drops blanks.
func compact(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
