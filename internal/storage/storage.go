package storage

import (
	"context"
	"errors"
	"math"
	"strings"

	"rangeKeeper/internal/model"
)

// ErrNotFound is returned when a position id does not exist.
var ErrNotFound = errors.New("position not found")

// PositionStore persists managed positions.
type PositionStore interface {
	CreatePosition(ctx context.Context, p model.Position) (model.Position, error)
	GetPosition(ctx context.Context, id int64) (model.Position, error)
	ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error)
	// UpdatePositionRange records a rebalance. last_rebalance_at never moves backwards.
	UpdatePositionRange(ctx context.Context, id int64, update model.RangeUpdate) error
	SetPositionActive(ctx context.Context, id int64, active bool) error
}

// EventSink records rebalance attempts.
type EventSink interface {
	RecordRebalance(ctx context.Context, event model.RebalanceEvent) error
}

// ValidatePosition checks the fields every store requires before insert.
func ValidatePosition(p model.Position) error {
	if strings.TrimSpace(p.Owner) == "" {
		return model.NewInvalidInput("owner", p.Owner, "required")
	}
	if strings.TrimSpace(p.PoolAddress) == "" {
		return model.NewInvalidInput("pool_address", p.PoolAddress, "required")
	}
	if p.TickLower >= p.TickUpper {
		return model.NewInvalidInput("tick range", [2]int32{p.TickLower, p.TickUpper}, "lower must be below upper")
	}
	if math.IsNaN(p.CapitalUSD) || p.CapitalUSD <= 0 {
		return model.NewInvalidInput("capital_usd", p.CapitalUSD, "must be positive")
	}
	return nil
}

// FanOut delivers each event to every sink and returns the joined errors.
type FanOut []EventSink

// RecordRebalance implements EventSink.
func (f FanOut) RecordRebalance(ctx context.Context, event model.RebalanceEvent) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.RecordRebalance(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
