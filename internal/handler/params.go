package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// pathUUID binds the {name} path segment as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: must be a UUID", name)
	}
	return id, nil
}

// tripListParams are the query parameters of GET /trips.
type tripListParams struct {
	OrganizationID uuid.UUID
	From           *time.Time
	To             *time.Time
	Page           *int
	Limit          *int
}

func bindTripListParams(r *http.Request) (tripListParams, error) {
	q := r.URL.Query()
	var p tripListParams
	if err := runtime.BindQueryParameter("form", true, true, "organizationId", q, &p.OrganizationID); err != nil {
		return p, fmt.Errorf("invalid organizationId: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "from", q, &p.From); err != nil {
		return p, fmt.Errorf("invalid from: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "to", q, &p.To); err != nil {
		return p, fmt.Errorf("invalid to: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &p.Page); err != nil {
		return p, fmt.Errorf("invalid page: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return p, fmt.Errorf("invalid limit: %w", err)
	}
	return p, nil
}

// exportParams are the query parameters of GET /trips/export.
type exportParams struct {
	OrganizationID uuid.UUID
	Date           time.Time
	Format         *string
}

func bindExportParams(r *http.Request) (exportParams, error) {
	q := r.URL.Query()
	var p exportParams
	if err := runtime.BindQueryParameter("form", true, true, "organizationId", q, &p.OrganizationID); err != nil {
		return p, fmt.Errorf("invalid organizationId: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, true, "date", q, &p.Date); err != nil {
		return p, fmt.Errorf("invalid date: %w", err)
	}
	// Struct-kinded destinations such as time.Time are bound as exploded
	// objects, which report an absent value as success.
	if p.Date.IsZero() {
		return p, errors.New("invalid date: query parameter 'date' is required")
	}
	if err := runtime.BindQueryParameter("form", true, false, "format", q, &p.Format); err != nil {
		return p, fmt.Errorf("invalid format: %w", err)
	}
	if p.Format != nil && *p.Format != "csv" && *p.Format != "json" {
		return p, errors.New("invalid format: must be csv or json")
	}
	return p, nil
}
