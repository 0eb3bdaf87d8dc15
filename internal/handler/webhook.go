package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/webhook"
)

// WebhookResponse is the 200 body of POST /webhook/{integrationId}.
// Soft failures (filtered, unknown client, duplicate, processing error) still
// answer 200 with processed=false; Outcome and Reason say which one it was.
type WebhookResponse struct {
	Success      bool    `json:"success"`
	Processed    bool    `json:"processed"`
	TripsCreated int     `json:"tripsCreated"`
	Outcome      string  `json:"outcome"`
	Reason       *string `json:"reason,omitempty"`
}

// ReceiveWebhook handles POST /webhook/{integrationId}.
// The raw body is passed through untouched because the signature covers
// its exact bytes.
func (s *Server) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "integrationId")
	if err != nil {
		// Unparseable ids can never name an integration.
		writeError(w, http.StatusNotFound, "not_found", "integration not found")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body is too large")
			return
		}
		requestError(w, "could not read request body")
		return
	}

	res, err := s.webhooks.Ingest(r.Context(), id, body, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		serviceError(w, r, err, "integration not found")
		return
	}
	writeJSON(w, http.StatusOK, outcomeToResponse(res.Outcome))
}

// outcomeToResponse is exhaustive over domain.WebhookOutcome through
// LogStatus and OutcomeReason.
func outcomeToResponse(o domain.WebhookOutcome) WebhookResponse {
	resp := WebhookResponse{
		Success: true,
		Outcome: string(o.LogStatus()),
	}
	if _, ok := o.(domain.OutcomeCreated); ok {
		resp.Processed = true
		resp.TripsCreated = 1
	}
	if reason := domain.OutcomeReason(o); reason != "" {
		resp.Reason = &reason
	}
	return resp
}
