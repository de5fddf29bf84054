package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangeKeeper/internal/model"
)

func TestJournalAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rebalances.jsonl")
	j := NewJournal(path)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordRebalance(ctx, model.RebalanceEvent{
		ID: "a", PositionID: 1, Status: model.RebalanceCompleted,
		Withdrawn0: decimal.RequireFromString("1.25"), StartedAt: at, FinishedAt: at,
	}))
	require.NoError(t, j.RecordRebalance(ctx, model.RebalanceEvent{
		ID: "b", PositionID: 1, Status: model.RebalanceWithdrawFailed, Error: "reverted",
		StartedAt: at, FinishedAt: at,
	}))

	events, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.True(t, events[0].Withdrawn0.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, model.RebalanceWithdrawFailed, events[1].Status)
	assert.Equal(t, "reverted", events[1].Error)
}

type recordingSink struct {
	events []model.RebalanceEvent
	err    error
}

func (r *recordingSink) RecordRebalance(_ context.Context, e model.RebalanceEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func TestFanOutDeliversToAll(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}

	err := FanOut{ok, nil, failing}.RecordRebalance(context.Background(), model.RebalanceEvent{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
}

func TestValidatePosition(t *testing.T) {
	valid := model.Position{Owner: "0xo", PoolAddress: "0xp", TickLower: -10, TickUpper: 10, CapitalUSD: 1000}
	assert.NoError(t, ValidatePosition(valid))

	missingOwner := valid
	missingOwner.Owner = " "
	assert.Error(t, ValidatePosition(missingOwner))

	negative := valid
	negative.CapitalUSD = -1
	assert.Error(t, ValidatePosition(negative))

	noCapital := valid
	noCapital.CapitalUSD = 0
	assert.Error(t, ValidatePosition(noCapital))
}
