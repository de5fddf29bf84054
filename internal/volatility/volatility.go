// Package volatility estimates return volatility from a price series and the
// chance that price leaves a range within a horizon.
package volatility

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"rangeKeeper/internal/model"
)

const minutesPerDay = 24 * 60

// Returns computes simple returns (p[i]-p[i-1])/p[i-1].
func Returns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return nil, model.NewInvalidInput("price", p, "must be a positive finite number")
		}
		if i == 0 {
			continue
		}
		out = append(out, (p-prices[i-1])/prices[i-1])
	}
	return out, nil
}

// Volatility returns the standard deviation of returns over the trailing
// window of prices, as a percentage. window <= 0 uses every price. Fewer than
// two prices yield 0.
func Volatility(prices []float64, window int) (float64, error) {
	if window > 0 && len(prices) > window {
		prices = prices[len(prices)-window:]
	}
	returns, err := Returns(prices)
	if err != nil {
		return 0, err
	}
	if len(returns) == 0 {
		return 0, nil
	}
	return math.Sqrt(stat.PopVariance(returns, nil)) * 100, nil
}

// Sample computes a VolatilitySample over the points observed in
// (now-window, now]. Points may arrive in any order.
func Sample(points []model.PricePoint, window time.Duration, now time.Time) (model.VolatilitySample, error) {
	from := now.Add(-window)
	selected := make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		if window > 0 && !p.Timestamp.After(from) {
			continue
		}
		if p.Timestamp.After(now) {
			continue
		}
		selected = append(selected, p)
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})

	prices := make([]float64, len(selected))
	for i, p := range selected {
		prices[i] = p.Price
	}
	vol, err := Volatility(prices, 0)
	if err != nil {
		return model.VolatilitySample{}, err
	}
	return model.VolatilitySample{
		Window:    window,
		From:      from,
		To:        now,
		StdDevPct: vol,
		Samples:   len(selected),
	}, nil
}

// OutOfRangeProbability approximates, as a percentage, the chance that price
// leaves a symmetric range within horizonMinutes. volatilityPct is a daily
// return volatility in percent and tickRange is the half-width in ticks,
// read as tickRange/100 percent of price. Volatility is scaled by
// sqrt(horizon/1440) and the bounds are scored against a normal distribution.
// This is a heuristic, not an option-pricing model.
func OutOfRangeProbability(volatilityPct float64, tickRange int32, horizonMinutes float64) (float64, error) {
	if math.IsNaN(volatilityPct) || volatilityPct < 0 {
		return 0, model.NewInvalidInput("volatility", volatilityPct, "must be non-negative")
	}
	if tickRange <= 0 {
		return 0, model.NewInvalidInput("tick range", tickRange, "must be positive")
	}
	if math.IsNaN(horizonMinutes) || horizonMinutes <= 0 {
		return 0, model.NewInvalidInput("horizon minutes", horizonMinutes, "must be positive")
	}

	rangeFraction := float64(tickRange) / 100 / 100
	scaled := volatilityPct / 100 * math.Sqrt(horizonMinutes/minutesPerDay)
	if scaled == 0 {
		return 0, nil
	}
	zUpper := rangeFraction / scaled
	zLower := -rangeFraction / scaled
	inside := distuv.UnitNormal.CDF(zUpper) - distuv.UnitNormal.CDF(zLower)
	return clamp((1-inside)*100, 0, 100), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
