package model

// RangeRecommendation is the optimizer output for one pool.
type RangeRecommendation struct {
	LowerTick           int32   `json:"lower_tick"`
	UpperTick           int32   `json:"upper_tick"`
	LowerPrice          float64 `json:"lower_price"`
	UpperPrice          float64 `json:"upper_price"`
	TickSpacing         int32   `json:"tick_spacing"`
	Profile             string  `json:"profile"`
	Volatility          float64 `json:"volatility"`
	Concentration       float64 `json:"concentration"`
	PriceRangePercent   float64 `json:"price_range_percent"`
	TargetDurationHours float64 `json:"target_duration_hours"`
	EstimatedGasCostUSD float64 `json:"estimated_gas_cost_usd"`
	GasCostRatio        float64 `json:"gas_cost_ratio"`
}

// Width returns the recommended tick width.
func (r RangeRecommendation) Width() int32 {
	return r.UpperTick - r.LowerTick
}
