package model

import "time"

// PricePoint is one observation of a pool price in token1-per-token0 terms.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// VolatilitySample is the standard deviation of returns over a time window.
type VolatilitySample struct {
	Window    time.Duration `json:"window"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	StdDevPct float64       `json:"std_dev_pct"`
	Samples   int           `json:"samples"`
}
