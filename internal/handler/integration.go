package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// CreateIntegrationRequest is the body of POST /integrations.
type CreateIntegrationRequest struct {
	OrganizationID  uuid.UUID               `json:"organizationId"`
	Provider        string                  `json:"provider"`
	Name            string                  `json:"name"`
	SecretKey       string                  `json:"secretKey,omitempty"`
	KeywordFilters  []string                `json:"keywordFilters,omitempty"`
	AttendeeFilters []string                `json:"attendeeFilters,omitempty"`
	Rule            TripCreationRuleRequest `json:"rule"`
}

// TripCreationRuleRequest configures how accepted appointments become trips.
type TripCreationRuleRequest struct {
	PickupOffsetMinutes   int    `json:"pickupOffsetMinutes"`
	DefaultPickupLocation string `json:"defaultPickupLocation,omitempty"`
	TripType              string `json:"tripType,omitempty"`
	RequiresApproval      bool   `json:"requiresApproval"`
	NotesTemplate         string `json:"notesTemplate,omitempty"`
}

// Integration is the JSON representation of a webhook integration.
// SecretKey is only populated in the response to a create.
type Integration struct {
	ID              uuid.UUID         `json:"id"`
	OrganizationID  uuid.UUID         `json:"organizationId"`
	Provider        string            `json:"provider"`
	Name            string            `json:"name"`
	SecretKey       string            `json:"secretKey,omitempty"`
	KeywordFilters  []string          `json:"keywordFilters"`
	AttendeeFilters []string          `json:"attendeeFilters"`
	IsActive        bool              `json:"isActive"`
	CreatedAt       time.Time         `json:"createdAt"`
	Rule            *TripCreationRule `json:"rule,omitempty"`
}

// TripCreationRule is the JSON representation of a stored rule.
type TripCreationRule struct {
	ID                    uuid.UUID `json:"id"`
	PickupOffsetMinutes   int       `json:"pickupOffsetMinutes"`
	DefaultPickupLocation string    `json:"defaultPickupLocation,omitempty"`
	TripType              string    `json:"tripType"`
	RequiresApproval      bool      `json:"requiresApproval"`
	NotesTemplate         string    `json:"notesTemplate,omitempty"`
	IsActive              bool      `json:"isActive"`
}

// WebhookEventLog is the JSON representation of one audit row.
type WebhookEventLog struct {
	ID              uuid.UUID       `json:"id"`
	IntegrationID   uuid.UUID       `json:"integrationId"`
	EventType       string          `json:"eventType,omitempty"`
	ExternalEventID string          `json:"externalEventId,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	TripsCreated    int             `json:"tripsCreated"`
	TripID          *uuid.UUID      `json:"tripId,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

// ListIntegrations handles GET /integrations/{organizationId}.
func (s *Server) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := pathUUID(r, "organizationId")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	list, err := s.integrations.ListByOrganization(r.Context(), p, orgID)
	if err != nil {
		serviceError(w, r, err, "organization not found")
		return
	}
	out := make([]Integration, len(list))
	for i, in := range list {
		out[i] = integrationToResponse(in)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateIntegration handles POST /integrations.
// The 201 response is the only place the signing secret is ever returned.
func (s *Server) CreateIntegration(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var body CreateIntegrationRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	in, rule, err := s.integrations.Create(r.Context(), p,
		domain.WebhookIntegration{
			OrganizationID:  body.OrganizationID,
			Provider:        body.Provider,
			Name:            body.Name,
			SecretKey:       body.SecretKey,
			KeywordFilters:  body.KeywordFilters,
			AttendeeFilters: body.AttendeeFilters,
		},
		domain.TripCreationRule{
			PickupOffsetMinutes:   body.Rule.PickupOffsetMinutes,
			DefaultPickupLocation: body.Rule.DefaultPickupLocation,
			TripType:              domain.TripType(body.Rule.TripType),
			RequiresApproval:      body.Rule.RequiresApproval,
			NotesTemplate:         body.Rule.NotesTemplate,
		})
	if err != nil {
		serviceError(w, r, err, "organization not found")
		return
	}

	resp := integrationToResponse(in)
	resp.Rule = &TripCreationRule{
		ID:                    rule.ID,
		PickupOffsetMinutes:   rule.PickupOffsetMinutes,
		DefaultPickupLocation: rule.DefaultPickupLocation,
		TripType:              string(rule.TripType),
		RequiresApproval:      rule.RequiresApproval,
		NotesTemplate:         rule.NotesTemplate,
		IsActive:              rule.IsActive,
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListWebhookLogs handles GET /logs/{organizationId}.
// Returns the most recent entries, newest first.
func (s *Server) ListWebhookLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := pathUUID(r, "organizationId")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	logs, err := s.integrations.ListLogs(r.Context(), p, orgID)
	if err != nil {
		serviceError(w, r, err, "organization not found")
		return
	}
	out := make([]WebhookEventLog, len(logs))
	for i, l := range logs {
		out[i] = eventLogToResponse(l)
	}
	writeJSON(w, http.StatusOK, out)
}

// --- mapping helpers --------------------------------------------------------

func integrationToResponse(in domain.WebhookIntegration) Integration {
	return Integration{
		ID:              in.ID,
		OrganizationID:  in.OrganizationID,
		Provider:        in.Provider,
		Name:            in.Name,
		SecretKey:       in.SecretKey,
		KeywordFilters:  nonNil(in.KeywordFilters),
		AttendeeFilters: nonNil(in.AttendeeFilters),
		IsActive:        in.IsActive,
		CreatedAt:       in.CreatedAt,
	}
}

func eventLogToResponse(l domain.WebhookEventLog) WebhookEventLog {
	payload := l.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return WebhookEventLog{
		ID:              l.ID,
		IntegrationID:   l.IntegrationID,
		EventType:       l.EventType,
		ExternalEventID: l.ExternalEventID,
		Payload:         payload,
		Status:          string(l.Status),
		Reason:          l.Reason,
		TripsCreated:    l.TripsCreated,
		TripID:          l.TripID,
		ErrorMessage:    l.ErrorMessage,
		CreatedAt:       l.CreatedAt,
		ProcessedAt:     l.ProcessedAt,
	}
}

// nonNil keeps empty filter lists as [] rather than null in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
