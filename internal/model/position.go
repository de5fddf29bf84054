package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCheckInterval is used when a position does not carry its own interval.
const DefaultCheckInterval = 60 * time.Second

// Position is one concentrated-liquidity deposit under management.
type Position struct {
	ID              int64           `json:"id"`
	Owner           string          `json:"owner"`
	TokenID         uint64          `json:"token_id"`
	PoolAddress     string          `json:"pool_address"`
	TickLower       int32           `json:"tick_lower"`
	TickUpper       int32           `json:"tick_upper"`
	Amount0         decimal.Decimal `json:"amount0"`
	Amount1         decimal.Decimal `json:"amount1"`
	CapitalUSD      float64         `json:"capital_usd"`
	Profile         string          `json:"profile"`
	CheckInterval   time.Duration   `json:"check_interval"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastRebalanceAt time.Time       `json:"last_rebalance_at"`
}

// Interval returns the position check interval, falling back to the default.
func (p Position) Interval() time.Duration {
	if p.CheckInterval <= 0 {
		return DefaultCheckInterval
	}
	return p.CheckInterval
}

// Width returns the tick width of the position.
func (p Position) Width() int32 {
	return p.TickUpper - p.TickLower
}

// RangeUpdate replaces a position's range after a rebalance.
type RangeUpdate struct {
	TokenID      uint64
	TickLower    int32
	TickUpper    int32
	Amount0      decimal.Decimal
	Amount1      decimal.Decimal
	RebalancedAt time.Time
}
