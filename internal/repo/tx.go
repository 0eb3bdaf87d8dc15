package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repos bundles every repository over one connection or transaction.
type Repos struct {
	Trips        TripRepo
	Templates    RecurringTripRepo
	Clients      ClientRepo
	Integrations IntegrationRepo
	EventLogs    EventLogRepo
	Deliveries   DeliveryRepo
	Permissions  PermissionRepo
	Users        UserRepo
}

// NewRepos builds every repository over db.
func NewRepos(db db) Repos {
	return Repos{
		Trips:        NewTripRepo(db),
		Templates:    NewRecurringTripRepo(db),
		Clients:      NewClientRepo(db),
		Integrations: NewIntegrationRepo(db),
		EventLogs:    NewEventLogRepo(db),
		Deliveries:   NewDeliveryRepo(db),
		Permissions:  NewPermissionRepo(db),
		Users:        NewUserRepo(db),
	}
}

// Transactor runs fn with repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repos) error) error
}

// beginner is satisfied by *pgxpool.Pool and pgx.Tx. Beginning on a pgx.Tx
// opens a savepoint, so tests can nest inside their rolled-back transaction.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgTransactor struct {
	db beginner
}

// NewTransactor returns a Transactor over db.
func NewTransactor(db beginner) Transactor {
	return &pgTransactor{db: db}
}

func (t *pgTransactor) WithinTx(ctx context.Context, fn func(Repos) error) error {
	err := pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(NewRepos(tx))
	})
	if err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: %w", err)
	}
	return nil
}
