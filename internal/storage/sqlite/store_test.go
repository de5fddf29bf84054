package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func samplePosition() model.Position {
	return model.Position{
		Owner:         "0x1111111111111111111111111111111111111111",
		TokenID:       42,
		PoolAddress:   "0xd0b53D9277642d899DF5C87A3966A349A798F224",
		TickLower:     -198000,
		TickUpper:     -197400,
		Amount0:       decimal.RequireFromString("0.5"),
		Amount1:       decimal.RequireFromString("1500.25"),
		CapitalUSD:    3000,
		Profile:       "concentrated_follower",
		CheckInterval: 2 * time.Minute,
	}
}

func TestCreateAndGetPosition(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created, err := s.CreatePosition(ctx, samplePosition())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Active)

	got, err := s.GetPosition(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.TokenID)
	assert.Equal(t, int32(-198000), got.TickLower)
	assert.Equal(t, int32(-197400), got.TickUpper)
	assert.True(t, got.Amount1.Equal(decimal.RequireFromString("1500.25")))
	assert.Equal(t, 2*time.Minute, got.CheckInterval)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.True(t, got.LastRebalanceAt.IsZero())
}

func TestCreatePositionValidates(t *testing.T) {
	s := openStore(t)
	p := samplePosition()
	p.TickLower, p.TickUpper = 100, 100

	_, err := s.CreatePosition(context.Background(), p)
	var invalid *model.InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestCreatePositionRequiresCapital(t *testing.T) {
	s := openStore(t)
	p := samplePosition()
	p.CapitalUSD = 0

	_, err := s.CreatePosition(context.Background(), p)
	var invalid *model.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "capital_usd", invalid.Field)
}

func TestGetMissingPosition(t *testing.T) {
	s := openStore(t)
	_, err := s.GetPosition(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SetPositionActive(context.Background(), 99, false), storage.ErrNotFound)
}

func TestListActiveAfterPause(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a, err := s.CreatePosition(ctx, samplePosition())
	require.NoError(t, err)
	b, err := s.CreatePosition(ctx, samplePosition())
	require.NoError(t, err)

	require.NoError(t, s.SetPositionActive(ctx, a.ID, false))

	active, err := s.ListPositions(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	all, err := s.ListPositions(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.SetPositionActive(ctx, a.ID, true))
	active, err = s.ListPositions(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestUpdateRangeKeepsLastRebalanceMonotonic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p, err := s.CreatePosition(ctx, samplePosition())
	require.NoError(t, err)

	later := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdatePositionRange(ctx, p.ID, model.RangeUpdate{
		TokenID:      43,
		TickLower:    -197800,
		TickUpper:    -197200,
		Amount0:      decimal.RequireFromString("0.4"),
		Amount1:      decimal.RequireFromString("1800"),
		RebalancedAt: later,
	}))

	earlier := later.Add(-30 * time.Minute)
	require.NoError(t, s.UpdatePositionRange(ctx, p.ID, model.RangeUpdate{
		TokenID:      44,
		TickLower:    -197700,
		TickUpper:    -197100,
		Amount0:      decimal.Zero,
		Amount1:      decimal.Zero,
		RebalancedAt: earlier,
	}))

	got, err := s.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(44), got.TokenID)
	assert.Equal(t, int32(-197700), got.TickLower)
	assert.Equal(t, later, got.LastRebalanceAt)
}

func TestUpdateRangeRejectsInvertedTicks(t *testing.T) {
	s := openStore(t)
	err := s.UpdatePositionRange(context.Background(), 1, model.RangeUpdate{TickLower: 10, TickUpper: -10})
	var invalid *model.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestRecordRebalanceUpserts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	event := model.RebalanceEvent{
		ID:           "evt-1",
		PositionID:   7,
		Owner:        "0xowner",
		PoolAddress:  "0xpool",
		OldTokenID:   42,
		Reason:       "out_of_range",
		CurrentTick:  -196000,
		OldTickLower: -198000,
		OldTickUpper: -197400,
		Withdrawn0:   decimal.RequireFromString("0.5"),
		Withdrawn1:   decimal.RequireFromString("1500"),
		Status:       model.RebalanceDepositFailed,
		Error:        "mint reverted",
		TxHashes:     []string{"0xaa"},
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
	}
	require.NoError(t, s.RecordRebalance(ctx, event))

	event.Status = model.RebalanceCompleted
	event.Error = ""
	event.NewTokenID = 43
	event.TxHashes = []string{"0xaa", "0xbb"}
	require.NoError(t, s.RecordRebalance(ctx, event))

	events, err := s.ListRebalances(ctx, 7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.RebalanceCompleted, events[0].Status)
	assert.Equal(t, uint64(43), events[0].NewTokenID)
	assert.Equal(t, []string{"0xaa", "0xbb"}, events[0].TxHashes)
	assert.True(t, events[0].Withdrawn1.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, started, events[0].StartedAt)
}
