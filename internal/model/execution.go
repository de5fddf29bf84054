package model

import "github.com/shopspring/decimal"

// Withdrawal is the result of removing all liquidity from a position and
// collecting what it owed.
type Withdrawal struct {
	TokenID  uint64
	Amount0  decimal.Decimal
	Amount1  decimal.Decimal
	TxHashes []string
}

// SwapRequest sells AmountIn of TokenIn for TokenOut through one pool.
type SwapRequest struct {
	TokenIn          TokenConfig
	TokenOut         TokenConfig
	FeeTier          uint32
	AmountIn         decimal.Decimal
	AmountOutMinimum decimal.Decimal
}

// SwapResult reports the output of a swap.
type SwapResult struct {
	AmountOut decimal.Decimal
	TxHashes  []string
}

// DepositRequest mints a new position.
type DepositRequest struct {
	Pool      PoolSnapshot
	TickLower int32
	TickUpper int32
	Amount0   decimal.Decimal
	Amount1   decimal.Decimal
}

// Deposit reports the minted position.
type Deposit struct {
	TokenID  uint64
	Amount0  decimal.Decimal
	Amount1  decimal.Decimal
	TxHashes []string
}
