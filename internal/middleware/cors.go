// Package middleware provides reusable HTTP middleware for the dispatch API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/pkordes/nemt-dispatch/internal/webhook"
)

// CORSOptions is the policy for the dispatch console. Origins are full
// origins (scheme and host, no trailing slash); "*" admits any origin.
func CORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", webhook.SignatureHeader},
		ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
		MaxAge:         600,
	}
}

// NewCORSHandler applies CORSOptions(origins). An empty list disables
// cross-origin access.
func NewCORSHandler(origins []string) func(http.Handler) http.Handler {
	return cors.New(CORSOptions(origins)).Handler
}
