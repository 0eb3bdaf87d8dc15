package domain

import "errors"

// Sentinel errors shared by the repo, service and handler layers. Wrap them
// with fmt.Errorf("%w: detail", ...) so errors.Is still matches; the handler
// layer turns each into its HTTP status.
var (
	// ErrNotFound means the addressed row does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrValidation marks input that breaks a business rule, such as a
	// missing client selection or a malformed HH:MM time (400).
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized means the caller could not be authenticated: a missing
	// or invalid bearer token, or a webhook signature mismatch (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means an authenticated principal lacks the permission or
	// organization scope for the operation (403).
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means a write collided with existing state, e.g. a webhook
	// delivery that has already been claimed (409).
	ErrConflict = errors.New("conflict")
)
