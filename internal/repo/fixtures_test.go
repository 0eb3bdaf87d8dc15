package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/repo"
	"github.com/pkordes/nemt-dispatch/testutil"
)

// fixture is a rolled-back transaction with one organization, one client and
// one client group already inserted.
type fixture struct {
	tx     pgx.Tx
	repos  repo.Repos
	org    uuid.UUID
	client domain.Client
	group  domain.ClientGroup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	tx := testutil.NewTx(t)
	repos := repo.NewRepos(tx)

	org := insertOrganization(t, tx, "Sunrise Senior Services")
	client, err := repos.Clients.Create(ctx, domain.Client{
		OrganizationID: org, FirstName: "Jane", LastName: "Doe", HomeAddress: "1 Home St",
	})
	require.NoError(t, err)
	group, err := repos.Clients.CreateGroup(ctx, domain.ClientGroup{OrganizationID: org, Name: "Tuesday Dialysis"})
	require.NoError(t, err)

	return &fixture{tx: tx, repos: repos, org: org, client: client, group: group}
}

func insertOrganization(t *testing.T, tx pgx.Tx, name string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := tx.QueryRow(context.Background(), `INSERT INTO organizations (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *fixture) template(t *testing.T) domain.RecurringTrip {
	t.Helper()
	created, err := f.repos.Templates.Create(context.Background(), domain.RecurringTrip{
		OrganizationID: f.org,
		ClientID:       &f.client.ID,
		DayOfWeek:      time.Wednesday,
		ScheduledTime:  "09:00",
		PickupAddress:  "1 Home St",
		DropoffAddress: "12 Clinic Rd",
		TripType:       domain.TripTypeRoundTrip,
		DurationWeeks:  4,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) trip(pickup time.Time, templateID *uuid.UUID) domain.Trip {
	return domain.Trip{
		OrganizationID:      f.org,
		ClientID:            &f.client.ID,
		PickupAddress:       "1 Home St",
		DropoffAddress:      "12 Clinic Rd",
		ScheduledPickupTime: pickup,
		TripType:            domain.TripTypeRoundTrip,
		Status:              domain.TripStatusScheduled,
		RecurringTripID:     templateID,
		Source:              domain.TripSourceRecurring,
	}
}
