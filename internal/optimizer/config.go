package optimizer

import (
	"fmt"
	"time"

	"rangeKeeper/internal/model"
)

// Config holds the strategy knobs the optimizer reads.
type Config struct {
	// MinTickRange and MaxTickRange are range widths in multiples of the tick spacing.
	MinTickRange     int32
	MaxTickRange     int32
	MaxGasCostRatio  float64
	VolatilityWindow time.Duration
	TxPerRebalance   int
	GasPerTx         uint64
	FeeTierSpacing   map[uint32]int32
}

// DefaultFeeTierSpacing maps Uniswap V3 fee tiers to tick spacing.
func DefaultFeeTierSpacing() map[uint32]int32 {
	return map[uint32]int32{
		100:   1,
		500:   10,
		3000:  60,
		10000: 200,
	}
}

// DefaultConfig returns the stock strategy settings.
func DefaultConfig() Config {
	return Config{
		MinTickRange:     50,
		MaxTickRange:     1000,
		MaxGasCostRatio:  0.02,
		VolatilityWindow: 24 * time.Hour,
		TxPerRebalance:   5,
		GasPerTx:         500_000,
		FeeTierSpacing:   DefaultFeeTierSpacing(),
	}
}

// Validate checks the config for values the optimizer cannot use.
func (c Config) Validate() error {
	if c.MinTickRange <= 0 {
		return model.NewConfigurationError("strategy.min-tick-range", "must be positive")
	}
	if c.MaxTickRange < c.MinTickRange {
		return model.NewConfigurationError("strategy.max-tick-range", fmt.Sprintf("%d is below min-tick-range %d", c.MaxTickRange, c.MinTickRange))
	}
	if c.MaxGasCostRatio <= 0 {
		return model.NewConfigurationError("strategy.max-gas-cost-ratio", "must be positive")
	}
	if c.VolatilityWindow <= 0 {
		return model.NewConfigurationError("strategy.volatility-window", "must be positive")
	}
	if c.TxPerRebalance <= 0 || c.GasPerTx == 0 {
		return model.NewConfigurationError("strategy.tx-per-rebalance", "gas estimate inputs must be positive")
	}
	if len(c.FeeTierSpacing) == 0 {
		return model.NewConfigurationError("strategy.fee-tier-spacing", "no fee tiers configured")
	}
	for tier, spacing := range c.FeeTierSpacing {
		if spacing <= 0 {
			return model.NewConfigurationError("strategy.fee-tier-spacing", fmt.Sprintf("fee tier %d has spacing %d", tier, spacing))
		}
	}
	return nil
}

// TickSpacing returns the spacing for a fee tier.
func (c Config) TickSpacing(feeTier uint32) (int32, error) {
	spacing, ok := c.FeeTierSpacing[feeTier]
	if !ok {
		return 0, model.NewConfigurationError("strategy.fee-tier-spacing", fmt.Sprintf("no tick spacing for fee tier %d", feeTier))
	}
	return spacing, nil
}

// Profile shapes how tightly a strategy follows price.
type Profile struct {
	Name               string
	BaseDurationHours  float64
	ConcentrationScale float64
}

// Strategy profiles.
const (
	ProfileConcentratedFollower = "concentrated_follower"
	ProfileMultiPosition        = "multi_position"
)

var profiles = map[string]Profile{
	ProfileConcentratedFollower: {Name: ProfileConcentratedFollower, BaseDurationHours: 6, ConcentrationScale: 1.0},
	ProfileMultiPosition:        {Name: ProfileMultiPosition, BaseDurationHours: 24, ConcentrationScale: 0.7},
}

// LookupProfile returns a named profile. An empty name selects the follower profile.
func LookupProfile(name string) (Profile, error) {
	if name == "" {
		name = ProfileConcentratedFollower
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, model.NewConfigurationError("profile", fmt.Sprintf("unknown strategy profile %q", name))
	}
	return p, nil
}
