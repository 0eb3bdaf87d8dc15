package retention_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nemt-dispatch/internal/retention"
	"github.com/pkordes/nemt-dispatch/testutil"
)

type mockLogPruner struct {
	pruneBefore func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockLogPruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.pruneBefore(ctx, cutoff)
}

func TestPruner_Run(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 4, 3, 0, 0, 0, time.UTC))
	var gotCutoff time.Time
	logs := &mockLogPruner{pruneBefore: func(_ context.Context, cutoff time.Time) (int64, error) {
		gotCutoff = cutoff
		return 12, nil
	}}

	n, err := retention.NewPruner(logs, 90, clock.NowFunc()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, time.Date(2025, 3, 6, 3, 0, 0, 0, time.UTC), gotCutoff)
}

func TestPruner_ZeroDaysDisables(t *testing.T) {
	logs := &mockLogPruner{pruneBefore: func(context.Context, time.Time) (int64, error) {
		t.Fatal("PruneBefore must not be called")
		return 0, nil
	}}

	n, err := retention.NewPruner(logs, 0, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPruner_Error(t *testing.T) {
	boom := errors.New("db down")
	logs := &mockLogPruner{pruneBefore: func(context.Context, time.Time) (int64, error) { return 0, boom }}

	_, err := retention.NewPruner(logs, 30, nil).Run(context.Background())

	assert.ErrorIs(t, err, boom)
}

func TestNewScheduler(t *testing.T) {
	p := retention.NewPruner(&mockLogPruner{}, 30, nil)

	s, err := retention.NewScheduler(p, "@daily", nil)
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())

	_, err = retention.NewScheduler(p, "every tuesday", nil)
	assert.Error(t, err)
}
