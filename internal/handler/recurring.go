package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/service"
)

// CreateRecurringTripRequest is the body of POST /recurring-trips.
// Duration is the number of weeks and may be sent as a string or a number.
type CreateRecurringTripRequest struct {
	SelectionType  string      `json:"selectionType"`
	ClientID       *uuid.UUID  `json:"clientId,omitempty"`
	ClientGroupID  *uuid.UUID  `json:"clientGroupId,omitempty"`
	OrganizationID uuid.UUID   `json:"organizationId"`
	PickupAddress  string      `json:"pickupAddress"`
	DropoffAddress string      `json:"dropoffAddress"`
	ScheduledTime  string      `json:"scheduledTime"`
	Frequency      string      `json:"frequency"`
	DaysOfWeek     []string    `json:"daysOfWeek"`
	Duration       json.Number `json:"duration"`
	TripType       string      `json:"tripType"`
	TripNickname   string      `json:"tripNickname,omitempty"`
}

// CreateRecurringTripResponse is the 201 body of POST /recurring-trips.
// RecurringTripID is the first template created; RecurringTripIDs lists all
// of them when several days were requested.
type CreateRecurringTripResponse struct {
	Success              bool        `json:"success"`
	RecurringTripID      uuid.UUID   `json:"recurringTripId"`
	RecurringTripIDs     []uuid.UUID `json:"recurringTripIds"`
	TripInstancesCreated int         `json:"tripInstancesCreated"`
	Message              string      `json:"message"`
}

// SeriesChangeRequest is the body of DELETE /recurring-trips/{id} and
// PATCH /recurring-trips/{id}/modify. Updates is ignored by delete.
type SeriesChangeRequest struct {
	Scope          string       `json:"scope"`
	TripInstanceID *uuid.UUID   `json:"tripInstanceId,omitempty"`
	Updates        *TripUpdates `json:"updates,omitempty"`
}

// TripUpdates is the partial patch carried by a modify request.
type TripUpdates struct {
	PickupAddress  *string `json:"pickupAddress,omitempty"`
	DropoffAddress *string `json:"dropoffAddress,omitempty"`
	ScheduledTime  *string `json:"scheduledTime,omitempty"`
	TripType       *string `json:"tripType,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// DeleteSeriesResponse is the body of DELETE /recurring-trips/{id}.
type DeleteSeriesResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deletedCount"`
}

// ModifySeriesResponse is the body of PATCH /recurring-trips/{id}/modify.
type ModifySeriesResponse struct {
	Success      bool  `json:"success"`
	UpdatedCount int64 `json:"updatedCount"`
}

// RecurringTrip is the JSON representation of a weekly template.
type RecurringTrip struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	ClientID       *uuid.UUID `json:"clientId,omitempty"`
	ClientGroupID  *uuid.UUID `json:"clientGroupId,omitempty"`
	DayOfWeek      string     `json:"dayOfWeek"`
	ScheduledTime  string     `json:"scheduledTime"`
	PickupAddress  string     `json:"pickupAddress"`
	DropoffAddress string     `json:"dropoffAddress"`
	TripType       string     `json:"tripType"`
	DurationWeeks  int        `json:"durationWeeks"`
	TripNickname   *string    `json:"tripNickname,omitempty"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CreateRecurringTrip handles POST /recurring-trips.
func (s *Server) CreateRecurringTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var body CreateRecurringTripRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	in, err := requestToSeriesInput(body)
	if err != nil {
		requestError(w, err.Error())
		return
	}

	res, err := s.recurring.Create(r.Context(), p, in)
	if err != nil {
		serviceError(w, r, err, "client not found")
		return
	}

	ids := make([]uuid.UUID, len(res.Templates))
	for i, t := range res.Templates {
		ids[i] = t.ID
	}
	resp := CreateRecurringTripResponse{
		Success:              true,
		RecurringTripIDs:     ids,
		TripInstancesCreated: res.TripsCreated,
		Message:              fmt.Sprintf("Created %d recurring trip(s) with %d trip instance(s)", len(ids), res.TripsCreated),
	}
	if len(ids) > 0 {
		resp.RecurringTripID = ids[0]
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetRecurringTrip handles GET /recurring-trips/{id}.
func (s *Server) GetRecurringTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	tmpl, err := s.recurring.Get(r.Context(), p, id)
	if err != nil {
		serviceError(w, r, err, "recurring trip not found")
		return
	}
	writeJSON(w, http.StatusOK, recurringTripToResponse(tmpl))
}

// DeleteRecurringTrip handles DELETE /recurring-trips/{id}.
func (s *Server) DeleteRecurringTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		requestError(w, err.Error())
		return
	}
	var body SeriesChangeRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	n, err := s.recurring.Delete(r.Context(), p, id, domain.Scope(body.Scope), body.TripInstanceID)
	if err != nil {
		serviceError(w, r, err, "recurring trip or instance not found")
		return
	}
	writeJSON(w, http.StatusOK, DeleteSeriesResponse{Success: true, DeletedCount: n})
}

// ModifyRecurringTrip handles PATCH /recurring-trips/{id}/modify.
func (s *Server) ModifyRecurringTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		requestError(w, err.Error())
		return
	}
	var body SeriesChangeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Updates == nil {
		requestError(w, "updates is required")
		return
	}

	n, err := s.recurring.Modify(r.Context(), p, id, domain.Scope(body.Scope), body.TripInstanceID, requestToUpdates(*body.Updates))
	if err != nil {
		serviceError(w, r, err, "recurring trip or instance not found")
		return
	}
	writeJSON(w, http.StatusOK, ModifySeriesResponse{Success: true, UpdatedCount: n})
}

// --- mapping helpers --------------------------------------------------------

// requestToSeriesInput converts the request body into service input.
// Only the duration is checked here; everything else is validated by the
// service.
func requestToSeriesInput(b CreateRecurringTripRequest) (service.CreateRecurringTripInput, error) {
	weeks, err := b.Duration.Int64()
	if err != nil {
		return service.CreateRecurringTripInput{}, errors.New("duration must be a whole number of weeks")
	}
	return service.CreateRecurringTripInput{
		OrganizationID: b.OrganizationID,
		SelectionType:  b.SelectionType,
		ClientID:       b.ClientID,
		ClientGroupID:  b.ClientGroupID,
		PickupAddress:  b.PickupAddress,
		DropoffAddress: b.DropoffAddress,
		ScheduledTime:  b.ScheduledTime,
		Frequency:      b.Frequency,
		DaysOfWeek:     b.DaysOfWeek,
		DurationWeeks:  int(weeks),
		TripType:       b.TripType,
		Nickname:       b.TripNickname,
	}, nil
}

func requestToUpdates(u TripUpdates) domain.TripUpdates {
	out := domain.TripUpdates{
		PickupAddress:  u.PickupAddress,
		DropoffAddress: u.DropoffAddress,
		ScheduledTime:  u.ScheduledTime,
		Notes:          u.Notes,
	}
	if u.TripType != nil {
		tt := domain.TripType(*u.TripType)
		out.TripType = &tt
	}
	return out
}

func recurringTripToResponse(t domain.RecurringTrip) RecurringTrip {
	resp := RecurringTrip{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		ClientID:       t.ClientID,
		ClientGroupID:  t.ClientGroupID,
		DayOfWeek:      t.DayOfWeek.String(),
		ScheduledTime:  t.ScheduledTime,
		PickupAddress:  t.PickupAddress,
		DropoffAddress: t.DropoffAddress,
		TripType:       string(t.TripType),
		DurationWeeks:  t.DurationWeeks,
		IsActive:       t.IsActive,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.Nickname != "" {
		resp.TripNickname = &t.Nickname
	}
	return resp
}
