package model

// SwapEventData is the decoded pool Swap event payload.
type SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// IncreaseLiquidityEventData is emitted by the position manager on mint and increase.
type IncreaseLiquidityEventData struct {
	TokenID   string `json:"token_id"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// DecreaseLiquidityEventData is emitted by the position manager on withdraw.
type DecreaseLiquidityEventData struct {
	TokenID   string `json:"token_id"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// CollectEventData is the position manager Collect payload.
type CollectEventData struct {
	TokenID   string `json:"token_id"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// ReceiptEvents gathers the events of interest found in one transaction receipt.
type ReceiptEvents struct {
	TxHash            string                       `json:"tx_hash"`
	BlockNumber       uint64                       `json:"block_number"`
	IncreaseLiquidity []IncreaseLiquidityEventData `json:"increase_liquidity,omitempty"`
	DecreaseLiquidity []DecreaseLiquidityEventData `json:"decrease_liquidity,omitempty"`
	Collect           []CollectEventData           `json:"collect,omitempty"`
	Swaps             []SwapEventData              `json:"swaps,omitempty"`
}
