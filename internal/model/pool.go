package model

import "time"

// PoolSnapshot is a read-only view of a pool's identity and current economics.
type PoolSnapshot struct {
	ChainID      uint64    `json:"chain_id"`
	Address      string    `json:"address"`
	Token0       string    `json:"token0"`
	Token1       string    `json:"token1"`
	Symbol0      string    `json:"symbol0,omitempty"`
	Symbol1      string    `json:"symbol1,omitempty"`
	Decimals0    uint8     `json:"decimals0"`
	Decimals1    uint8     `json:"decimals1"`
	FeeTier      uint32    `json:"fee_tier"`
	TickSpacing  int32     `json:"tick_spacing"`
	CurrentTick  int32     `json:"current_tick"`
	CurrentPrice float64   `json:"current_price"`
	TVLUSD       float64   `json:"tvl_usd,omitempty"`
	Volume24hUSD float64   `json:"volume_24h_usd,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}
