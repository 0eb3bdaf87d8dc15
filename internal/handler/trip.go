package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// Trip is the JSON representation of a trip instance.
type Trip struct {
	ID                  uuid.UUID  `json:"id"`
	OrganizationID      uuid.UUID  `json:"organizationId"`
	ClientID            *uuid.UUID `json:"clientId,omitempty"`
	ClientGroupID       *uuid.UUID `json:"clientGroupId,omitempty"`
	GroupName           *string    `json:"groupName,omitempty"`
	PickupAddress       string     `json:"pickupAddress"`
	DropoffAddress      string     `json:"dropoffAddress"`
	ScheduledPickupTime time.Time  `json:"scheduledPickupTime"`
	TripType            string     `json:"tripType"`
	Status              string     `json:"status"`
	RecurringTripID     *uuid.UUID `json:"recurringTripId,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	Source              string     `json:"source"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// UpdateTripStatusRequest is the body of PATCH /trips/{id}/status.
type UpdateTripStatusRequest struct {
	Status string `json:"status"`
}

// ListTrips handles GET /trips.
// Requires ?organizationId=; supports ?from=, ?to= (RFC 3339 or YYYY-MM-DD),
// ?page= and ?limit= (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q, err := bindTripListParams(r)
	if err != nil {
		requestError(w, err.Error())
		return
	}

	page := domain.NewPaginationParams(q.Page, q.Limit)
	filter := domain.TripFilter{OrganizationID: q.OrganizationID, From: q.From, To: q.To}
	trips, total, err := s.trips.List(r.Context(), p, filter, page)
	if err != nil {
		serviceError(w, r, err, "organization not found")
		return
	}

	data := make([]Trip, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripList{
		Data: data,
		Pagination: Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      int(total),
			TotalPages: page.TotalPages(total),
		},
	})
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	trip, err := s.trips.GetByID(r.Context(), p, id)
	if err != nil {
		serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTripStatus handles PATCH /trips/{id}/status.
func (s *Server) UpdateTripStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		requestError(w, err.Error())
		return
	}
	var body UpdateTripStatusRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	trip, err := s.trips.UpdateStatus(r.Context(), p, id, body.Status)
	if err != nil {
		serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	if err := s.trips.Delete(r.Context(), p, id); err != nil {
		serviceError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

// tripToResponse converts a domain.Trip into its JSON form.
// Empty optional strings are omitted.
func tripToResponse(t domain.Trip) Trip {
	resp := Trip{
		ID:                  t.ID,
		OrganizationID:      t.OrganizationID,
		ClientID:            t.ClientID,
		ClientGroupID:       t.ClientGroupID,
		PickupAddress:       t.PickupAddress,
		DropoffAddress:      t.DropoffAddress,
		ScheduledPickupTime: t.ScheduledPickupTime.UTC(),
		TripType:            string(t.TripType),
		Status:              string(t.Status),
		RecurringTripID:     t.RecurringTripID,
		Source:              string(t.Source),
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if t.GroupName != "" {
		resp.GroupName = &t.GroupName
	}
	if t.Notes != "" {
		resp.Notes = &t.Notes
	}
	return resp
}
