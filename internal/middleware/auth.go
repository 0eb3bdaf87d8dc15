package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkordes/nemt-dispatch/internal/auth"
	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// Authenticator resolves a raw bearer token. *auth.Authenticator satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (domain.Principal, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token and stores the resolved principal in the request context.
func RequireBearer(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			p, err := a.Authenticate(r.Context(), raw)
			switch {
			case errors.Is(err, domain.ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			case err != nil:
				slog.ErrorContext(r.Context(), "authenticate bearer token", "error", err)
				writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeError mirrors the handler package's error envelope.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
