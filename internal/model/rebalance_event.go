package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rebalance journal statuses.
const (
	RebalanceCompleted      = "completed"
	RebalanceWithdrawFailed = "withdraw_failed"
	RebalanceSwapFailed     = "swap_failed"
	RebalanceDepositFailed  = "deposit_failed"
	RebalanceStoreFailed    = "store_failed"
)

// RebalanceEvent records one attempted rebalance.
type RebalanceEvent struct {
	ID           string          `json:"id"`
	PositionID   int64           `json:"position_id"`
	Owner        string          `json:"owner"`
	PoolAddress  string          `json:"pool_address"`
	OldTokenID   uint64          `json:"old_token_id"`
	NewTokenID   uint64          `json:"new_token_id,omitempty"`
	Reason       string          `json:"reason"`
	CurrentTick  int32           `json:"current_tick"`
	OldTickLower int32           `json:"old_tick_lower"`
	OldTickUpper int32           `json:"old_tick_upper"`
	NewTickLower int32           `json:"new_tick_lower,omitempty"`
	NewTickUpper int32           `json:"new_tick_upper,omitempty"`
	Withdrawn0   decimal.Decimal `json:"withdrawn0"`
	Withdrawn1   decimal.Decimal `json:"withdrawn1"`
	Deposited0   decimal.Decimal `json:"deposited0"`
	Deposited1   decimal.Decimal `json:"deposited1"`
	TxHashes     []string        `json:"tx_hashes,omitempty"`
	DryRun       bool            `json:"dry_run"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}
