package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// Store is the persistence the Authenticator needs. repo.UserRepo implements it.
type Store interface {
	GetToken(ctx context.Context, id uuid.UUID) (domain.APIToken, error)
	CreateToken(ctx context.Context, tok domain.APIToken) (domain.APIToken, error)
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// ParseToken splits a raw bearer token into its id and secret halves.
func ParseToken(raw string) (uuid.UUID, string, error) {
	idPart, secret, ok := strings.Cut(raw, ".")
	if !ok || secret == "" {
		return uuid.Nil, "", fmt.Errorf("%w: malformed token", domain.ErrUnauthorized)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: malformed token id", domain.ErrUnauthorized)
	}
	return id, secret, nil
}

// Authenticator resolves bearer tokens to principals and mints new tokens.
type Authenticator struct {
	store  Store
	params Params
}

// NewAuthenticator returns an Authenticator hashing with params.
func NewAuthenticator(store Store, params Params) *Authenticator {
	return &Authenticator{store: store, params: params}
}

// Authenticate returns the principal owning raw. Any failure, including an
// unknown or revoked token, is reported as domain.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (domain.Principal, error) {
	id, secret, err := ParseToken(raw)
	if err != nil {
		return domain.Principal{}, err
	}

	tok, err := a.store.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
		}
		return domain.Principal{}, fmt.Errorf("auth.Authenticator.Authenticate: %w", err)
	}
	if tok.RevokedAt != nil {
		return domain.Principal{}, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized)
	}
	if err := VerifySecret(tok.TokenHash, secret); err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	user, err := a.store.GetUser(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("%w: token owner missing", domain.ErrUnauthorized)
		}
		return domain.Principal{}, fmt.Errorf("auth.Authenticator.Authenticate: %w", err)
	}
	return user.Principal(), nil
}

// Issue mints a token for userID and returns its plaintext form. The
// plaintext is not recoverable afterwards.
func (a *Authenticator) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return "", fmt.Errorf("auth.Authenticator.Issue: %w", err)
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth.Authenticator.Issue: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	hash, err := HashSecret(secret, a.params)
	if err != nil {
		return "", fmt.Errorf("auth.Authenticator.Issue: %w", err)
	}
	tok, err := a.store.CreateToken(ctx, domain.APIToken{ID: uuid.New(), UserID: userID, TokenHash: hash})
	if err != nil {
		return "", fmt.Errorf("auth.Authenticator.Issue: %w", err)
	}
	return tok.ID.String() + "." + secret, nil
}
