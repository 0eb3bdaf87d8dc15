package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// UserRepo persists operator accounts and their API tokens.
// It implements auth.Store.
type UserRepo interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
	CreateToken(ctx context.Context, tok domain.APIToken) (domain.APIToken, error)
	GetToken(ctx context.Context, id uuid.UUID) (domain.APIToken, error)
	RevokeToken(ctx context.Context, id uuid.UUID) error
}

type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo backed by db.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

func (r *pgUserRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	const q = `
		INSERT INTO users (organization_id, email, role)
		VALUES (@organization_id, @email, @role)
		RETURNING id, organization_id, email, role, created_at`

	args := pgx.NamedArgs{"organization_id": u.OrganizationID, "email": u.Email, "role": string(u.Role)}
	created, err := scanUser(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.CreateUser: %w", err)
	}
	return created, nil
}

func (r *pgUserRepo) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	const q = `SELECT id, organization_id, email, role, created_at FROM users WHERE id = @id`

	u, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetUser: %w", err)
	}
	return u, nil
}

// CreateToken stores tok with its caller-chosen ID.
func (r *pgUserRepo) CreateToken(ctx context.Context, tok domain.APIToken) (domain.APIToken, error) {
	const q = `
		INSERT INTO api_tokens (id, user_id, token_hash)
		VALUES (@id, @user_id, @token_hash)
		RETURNING id, user_id, token_hash, revoked_at, created_at`

	args := pgx.NamedArgs{"id": tok.ID, "user_id": tok.UserID, "token_hash": tok.TokenHash}
	created, err := scanToken(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.APIToken{}, fmt.Errorf("repo.UserRepo.CreateToken: %w", err)
	}
	return created, nil
}

func (r *pgUserRepo) GetToken(ctx context.Context, id uuid.UUID) (domain.APIToken, error) {
	const q = `SELECT id, user_id, token_hash, revoked_at, created_at FROM api_tokens WHERE id = @id`

	tok, err := scanToken(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.APIToken{}, fmt.Errorf("repo.UserRepo.GetToken: %w", err)
	}
	return tok, nil
}

func (r *pgUserRepo) RevokeToken(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE api_tokens SET revoked_at = now() WHERE id = @id AND revoked_at IS NULL`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.UserRepo.RevokeToken: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.UserRepo.RevokeToken: %w", domain.ErrNotFound)
	}
	return nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u       domain.User
		id, org pgtype.UUID
		role    string
	)
	if err := s.Scan(&id, &org, &u.Email, &role, &u.CreatedAt); err != nil {
		return domain.User{}, notFound(err)
	}
	u.ID = uuid.UUID(id.Bytes)
	u.OrganizationID = uuid.UUID(org.Bytes)
	u.Role = domain.Role(role)
	return u, nil
}

func scanToken(s scanner) (domain.APIToken, error) {
	var (
		tok       domain.APIToken
		id, user  pgtype.UUID
		revokedAt pgtype.Timestamptz
	)
	if err := s.Scan(&id, &user, &tok.TokenHash, &revokedAt, &tok.CreatedAt); err != nil {
		return domain.APIToken{}, notFound(err)
	}
	tok.ID = uuid.UUID(id.Bytes)
	tok.UserID = uuid.UUID(user.Bytes)
	if revokedAt.Valid {
		t := revokedAt.Time
		tok.RevokedAt = &t
	}
	return tok, nil
}
