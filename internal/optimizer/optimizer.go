// Package optimizer chooses a concentrated-liquidity tick range from recent
// volatility, gas cost and a strategy profile.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/tickmath"
	"rangeKeeper/internal/volatility"
)

// PriceHistory returns pool prices observed over a trailing window.
type PriceHistory interface {
	History(ctx context.Context, poolAddress string, window time.Duration) ([]model.PricePoint, error)
}

// Optimizer computes range recommendations.
type Optimizer struct {
	cfg     Config
	history PriceHistory
	gas     GasOracle
	logger  *zap.Logger
	now     func() time.Time
}

// New builds an Optimizer after validating cfg.
func New(cfg Config, history PriceHistory, gas GasOracle, logger *zap.Logger) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if history == nil {
		return nil, fmt.Errorf("price history is required")
	}
	if gas == nil {
		return nil, fmt.Errorf("gas oracle is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{cfg: cfg, history: history, gas: gas, logger: logger, now: time.Now}, nil
}

// Config returns the optimizer settings.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// CalculateOptimalRange recommends [lower, upper] ticks for pool around
// currentPrice, a human price in token1 per token0.
func (o *Optimizer) CalculateOptimalRange(ctx context.Context, pool model.PoolSnapshot, currentPrice, capitalUSD float64, profileName string) (model.RangeRecommendation, error) {
	if math.IsNaN(currentPrice) || currentPrice <= 0 {
		return model.RangeRecommendation{}, model.NewInvalidInput("current price", currentPrice, "must be positive")
	}
	if math.IsNaN(capitalUSD) || capitalUSD <= 0 {
		return model.RangeRecommendation{}, model.NewInvalidInput("capital", capitalUSD, "must be positive")
	}
	profile, err := LookupProfile(profileName)
	if err != nil {
		return model.RangeRecommendation{}, err
	}
	spacing, err := o.tickSpacing(pool)
	if err != nil {
		return model.RangeRecommendation{}, err
	}

	points, err := o.history.History(ctx, pool.Address, o.cfg.VolatilityWindow)
	if err != nil {
		return model.RangeRecommendation{}, fmt.Errorf("load price history: %w", err)
	}
	sample, err := volatility.Sample(points, o.cfg.VolatilityWindow, o.now())
	if err != nil {
		return model.RangeRecommendation{}, fmt.Errorf("volatility: %w", err)
	}
	vol := sample.StdDevPct / 100

	quote, err := o.gas.Quote(ctx)
	if err != nil {
		return model.RangeRecommendation{}, fmt.Errorf("gas quote: %w", err)
	}
	gasCost := RebalanceCostUSD(quote, o.cfg.TxPerRebalance, o.cfg.GasPerTx)
	gasRatio := gasCost / capitalUSD

	duration := TargetDuration(profile, vol, gasRatio)
	concentration := Concentration(vol, duration, o.cfg.MaxGasCostRatio) * profile.ConcentrationScale
	rangePct := PriceRangePercent(vol, concentration, duration)

	rawPrice := tickmath.RawPrice(currentPrice, pool.Decimals0, pool.Decimals1)
	lower, upper, err := tickmath.TickRangeForPriceBand(rawPrice, rangePct, spacing)
	if err != nil {
		return model.RangeRecommendation{}, err
	}
	lower, upper = tickmath.ClampWidth(lower, upper, o.cfg.MinTickRange*spacing, o.cfg.MaxTickRange*spacing, spacing)

	rec := model.RangeRecommendation{
		LowerTick:           lower,
		UpperTick:           upper,
		LowerPrice:          tickmath.HumanPrice(tickmath.TickToPrice(lower), pool.Decimals0, pool.Decimals1),
		UpperPrice:          tickmath.HumanPrice(tickmath.TickToPrice(upper), pool.Decimals0, pool.Decimals1),
		TickSpacing:         spacing,
		Profile:             profile.Name,
		Volatility:          vol,
		Concentration:       concentration,
		PriceRangePercent:   rangePct,
		TargetDurationHours: duration,
		EstimatedGasCostUSD: gasCost,
		GasCostRatio:        gasRatio,
	}
	o.logger.Info("optimal range",
		zap.String("pool", pool.Address),
		zap.String("profile", profile.Name),
		zap.Int("samples", sample.Samples),
		zap.Float64("volatility", vol),
		zap.Float64("gas_cost_usd", gasCost),
		zap.Float64("target_duration_hours", duration),
		zap.Float64("concentration", concentration),
		zap.Float64("price_range_pct", rangePct),
		zap.Int32("lower_tick", lower),
		zap.Int32("upper_tick", upper),
	)
	return rec, nil
}

func (o *Optimizer) tickSpacing(pool model.PoolSnapshot) (int32, error) {
	spacing, err := o.cfg.TickSpacing(pool.FeeTier)
	if err == nil {
		return spacing, nil
	}
	if pool.TickSpacing > 0 {
		return pool.TickSpacing, nil
	}
	return 0, err
}

// TargetDuration is the number of hours a range should hold before it needs
// rebalancing, clamped to [1, 72].
func TargetDuration(profile Profile, vol, gasRatio float64) float64 {
	d := profile.BaseDurationHours * (1 + 10*vol) * (1 + 20*gasRatio)
	return clamp(d, 1, 72)
}

// ExpectedMove is the volatility scaled to the target duration.
func ExpectedMove(vol, durationHours float64) float64 {
	return vol * math.Sqrt(durationHours/24)
}

// Concentration is 1/(1+expectedMove/maxGasRatio), clamped to [0.1, 0.9].
func Concentration(vol, durationHours, maxGasRatio float64) float64 {
	c := 1 / (1 + ExpectedMove(vol, durationHours)/maxGasRatio)
	return clamp(c, 0.1, 0.9)
}

// PriceRangePercent is the half-width of the price band as a fraction,
// clamped to [0.01, 0.5].
func PriceRangePercent(vol, concentration, durationHours float64) float64 {
	r := ExpectedMove(vol, durationHours) * 2.0 * (1 - concentration*0.7)
	return clamp(r, 0.01, 0.5)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
