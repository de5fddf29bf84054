package volatility

import (
	"fmt"
	"math"
	"time"

	"rangeKeeper/internal/model"
)

// Bands are price levels one and two standard deviations from the current price.
type Bands struct {
	Lower2 float64 `json:"lower_2std"`
	Lower1 float64 `json:"lower_1std"`
	Upper1 float64 `json:"upper_1std"`
	Upper2 float64 `json:"upper_2std"`
}

// PriceRange is the low and high of a trailing set of prices.
type PriceRange struct {
	Label string  `json:"label"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
}

// Analysis summarizes an hourly price series.
type Analysis struct {
	CurrentPrice  float64      `json:"current_price"`
	VolatilityPct float64      `json:"volatility_pct"`
	Samples       int          `json:"samples"`
	Bands         Bands        `json:"bands"`
	Ranges        []PriceRange `json:"ranges"`
}

// Trailing windows, in hourly points.
var trailingWindows = []struct {
	label  string
	points int
}{
	{"1d", 24},
	{"30d", 720},
	{"all", 0},
}

// Analyze computes volatility, bands and trailing ranges from points sorted
// oldest first.
func Analyze(points []model.PricePoint) (Analysis, error) {
	if len(points) == 0 {
		return Analysis{}, model.NewInvalidInput("prices", 0, "no price points")
	}
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	vol, err := Volatility(prices, 0)
	if err != nil {
		return Analysis{}, err
	}
	current := prices[len(prices)-1]

	out := Analysis{
		CurrentPrice:  current,
		VolatilityPct: vol,
		Samples:       len(prices),
		Bands:         BandsFor(current, vol),
	}
	for _, w := range trailingWindows {
		window := prices
		if w.points > 0 && len(prices) >= w.points {
			window = prices[len(prices)-w.points:]
		}
		lo, hi := minMax(window)
		out.Ranges = append(out.Ranges, PriceRange{Label: w.label, Low: lo, High: hi})
	}
	return out, nil
}

// BandsFor returns price*(1±k*vol/100) for k in {1,2}.
func BandsFor(price, volatilityPct float64) Bands {
	v := volatilityPct / 100
	return Bands{
		Lower2: price * (1 - 2*v),
		Lower1: price * (1 - v),
		Upper1: price * (1 + v),
		Upper2: price * (1 + 2*v),
	}
}

// Strategy is a coarse range suggestion for a risk tolerance.
type Strategy struct {
	RiskTolerance string        `json:"risk_tolerance"`
	TickRange     int32         `json:"tick_range"`
	CheckInterval time.Duration `json:"check_interval"`
	Probability   float64       `json:"out_of_range_probability"`
	RiskLevel     string        `json:"risk_level"`
}

// StrategyFor suggests a tick range and check interval for a risk tolerance
// of low, medium or high, and scores it over the check interval.
func StrategyFor(riskTolerance string, volatilityPct float64) (Strategy, error) {
	var (
		minRange   int32
		multiplier float64
		interval   time.Duration
	)
	switch riskTolerance {
	case RiskLow:
		minRange, multiplier, interval = 200, 10, 5*time.Minute
	case RiskMedium:
		minRange, multiplier, interval = 100, 5, 3*time.Minute
	case RiskHigh:
		minRange, multiplier, interval = 50, 2, time.Minute
	default:
		return Strategy{}, model.NewInvalidInput("risk tolerance", riskTolerance, fmt.Sprintf("want %s, %s or %s", RiskLow, RiskMedium, RiskHigh))
	}
	tickRange := int32(volatilityPct * multiplier)
	if tickRange < minRange {
		tickRange = minRange
	}
	prob, err := OutOfRangeProbability(volatilityPct, tickRange, interval.Minutes())
	if err != nil {
		return Strategy{}, err
	}
	return Strategy{
		RiskTolerance: riskTolerance,
		TickRange:     tickRange,
		CheckInterval: interval,
		Probability:   prob,
		RiskLevel:     RiskLevel(prob),
	}, nil
}

func minMax(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
