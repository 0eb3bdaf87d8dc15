// Package handler: export.go implements GET /trips/export, the daily trip
// manifest. Supports content negotiation via ?format=csv (CSV) or default (JSON).
package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"trip_id", "pickup_time", "rider", "pickup_address", "dropoff_address",
	"trip_type", "status", "recurring", "notes",
}

// ManifestRow is the JSON form of one manifest line.
type ManifestRow struct {
	TripID         string    `json:"tripId"`
	PickupTime     time.Time `json:"pickupTime"`
	RiderName      string    `json:"riderName"`
	PickupAddress  string    `json:"pickupAddress"`
	DropoffAddress string    `json:"dropoffAddress"`
	TripType       string    `json:"tripType"`
	Status         string    `json:"status"`
	Recurring      bool      `json:"recurring"`
	Notes          *string   `json:"notes,omitempty"`
}

// ExportTrips implements GET /trips/export?organizationId=&date=YYYY-MM-DD.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) ExportTrips(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q, err := bindExportParams(r)
	if err != nil {
		requestError(w, err.Error())
		return
	}

	rows, err := s.export.Manifest(r.Context(), p, q.OrganizationID, q.Date)
	if err != nil {
		serviceError(w, r, err, "organization not found")
		return
	}

	if q.Format != nil && *q.Format == "csv" {
		writeCSV(w, q.Date, rows)
		return
	}
	out := make([]ManifestRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, manifestRowToResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeCSV encodes rows as an attachment named after the manifest day.
func writeCSV(w http.ResponseWriter, day time.Time, rows []domain.ManifestRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	// bytes.Buffer writes never fail; csv errors surface through cw.Error.
	_ = cw.Write(csvHeaders)
	for _, row := range rows {
		_ = cw.Write(manifestRowToCSVRecord(row))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="manifest-%s.csv"`, day.Format(time.DateOnly)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// --- mapping helpers --------------------------------------------------------

func manifestRowToResponse(r domain.ManifestRow) ManifestRow {
	row := ManifestRow{
		TripID:         r.TripID,
		PickupTime:     r.PickupTime.UTC(),
		RiderName:      r.RiderName,
		PickupAddress:  r.PickupAddress,
		DropoffAddress: r.DropoffAddress,
		TripType:       string(r.TripType),
		Status:         string(r.Status),
		Recurring:      r.Recurring,
	}
	if r.Notes != "" {
		row.Notes = &r.Notes
	}
	return row
}

// manifestRowToCSVRecord encodes a domain.ManifestRow as a flat string slice.
// Pickup times are RFC 3339 in UTC.
func manifestRowToCSVRecord(r domain.ManifestRow) []string {
	return []string{
		r.TripID,
		r.PickupTime.UTC().Format(time.RFC3339),
		r.RiderName,
		r.PickupAddress,
		r.DropoffAddress,
		string(r.TripType),
		string(r.Status),
		strconv.FormatBool(r.Recurring),
		r.Notes,
	}
}
