// Package tickmath converts between Uniswap V3 ticks and prices and computes
// position token amounts from liquidity.
package tickmath

import (
	"math"

	"rangeKeeper/internal/model"
)

const (
	// MinTick and MaxTick bound every tick the protocol accepts.
	MinTick int32 = -887272
	MaxTick int32 = 887272

	tickBase = 1.0001
)

var logTickBase = math.Log(tickBase)

// PriceToTick converts a token1-per-token0 price to the nearest usable tick
// for the given spacing. The raw tick is floor(log(price)/log(1.0001)).
func PriceToTick(price float64, tickSpacing int32) (int32, error) {
	if err := validPrice("price", price); err != nil {
		return 0, err
	}
	if tickSpacing <= 0 {
		return 0, model.NewInvalidInput("tick spacing", tickSpacing, "must be positive")
	}
	raw := math.Floor(math.Log(price) / logTickBase)
	spacing := float64(tickSpacing)
	rounded := math.RoundToEven(raw/spacing) * spacing
	return clampAligned(rounded, tickSpacing), nil
}

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(tickBase, float64(tick))
}

// AlignTick rounds a tick down to a multiple of the spacing.
func AlignTick(tick, tickSpacing int32) int32 {
	if tickSpacing <= 1 {
		return tick
	}
	q := tick / tickSpacing
	if tick%tickSpacing != 0 && tick < 0 {
		q--
	}
	return q * tickSpacing
}

// UsableTickBounds returns the widest aligned ticks inside [MinTick, MaxTick].
func UsableTickBounds(tickSpacing int32) (int32, int32) {
	if tickSpacing <= 0 {
		return MinTick, MaxTick
	}
	lo := (MinTick / tickSpacing) * tickSpacing
	hi := (MaxTick / tickSpacing) * tickSpacing
	return lo, hi
}

// TickRangeForPriceBand returns aligned ticks for current*(1-rangePercent)
// and current*(1+rangePercent). rangePercent is a fraction in (0,1).
func TickRangeForPriceBand(currentPrice, rangePercent float64, tickSpacing int32) (int32, int32, error) {
	if err := validPrice("current price", currentPrice); err != nil {
		return 0, 0, err
	}
	if math.IsNaN(rangePercent) || rangePercent <= 0 || rangePercent >= 1 {
		return 0, 0, model.NewInvalidInput("range percent", rangePercent, "must be in (0,1)")
	}
	lower, err := PriceToTick(currentPrice*(1-rangePercent), tickSpacing)
	if err != nil {
		return 0, 0, err
	}
	upper, err := PriceToTick(currentPrice*(1+rangePercent), tickSpacing)
	if err != nil {
		return 0, 0, err
	}
	if lower > upper {
		lower, upper = upper, lower
	}
	if lower == upper {
		lower, upper = widenByOne(lower, tickSpacing)
	}
	return lower, upper, nil
}

// ClampWidth resizes [lower, upper] symmetrically around its center so the
// width lies in [minWidth, maxWidth], then aligns both ends to the spacing.
// A zero bound is ignored.
func ClampWidth(lower, upper, minWidth, maxWidth, tickSpacing int32) (int32, int32) {
	width := upper - lower
	target := width
	switch {
	case minWidth > 0 && width < minWidth:
		target = minWidth
	case maxWidth > 0 && width > maxWidth:
		target = maxWidth
	}
	if target != width {
		center := lower + width/2
		lower = center - target/2
		upper = lower + target
	}

	lower = AlignTick(lower, tickSpacing)
	upper = alignUp(upper, tickSpacing)
	step := tickSpacing
	if step <= 0 {
		step = 1
	}
	for trimUpper := true; maxWidth > 0 && upper-lower > maxWidth && upper-lower > step; trimUpper = !trimUpper {
		if trimUpper {
			upper -= step
		} else {
			lower += step
		}
	}

	lo, hi := UsableTickBounds(tickSpacing)
	if lower < lo {
		lower = lo
	}
	if upper > hi {
		upper = hi
	}
	if lower >= upper {
		lower, upper = widenByOne(lower, tickSpacing)
	}
	return lower, upper
}

func alignUp(tick, tickSpacing int32) int32 {
	aligned := AlignTick(tick, tickSpacing)
	if aligned < tick {
		aligned += tickSpacing
	}
	return aligned
}

// CenteredRange places an aligned range of the given width around center.
func CenteredRange(center, width, tickSpacing int32) (int32, int32) {
	half := width / 2
	lower := AlignTick(center-half, tickSpacing)
	upper := AlignTick(center+half, tickSpacing)
	if lower >= upper {
		lower, upper = widenByOne(lower, tickSpacing)
	}
	return lower, upper
}

func widenByOne(tick, tickSpacing int32) (int32, int32) {
	step := tickSpacing
	if step <= 0 {
		step = 1
	}
	lo, hi := UsableTickBounds(step)
	if tick+step > hi {
		return tick - step, tick
	}
	if tick < lo {
		return lo, lo + step
	}
	return tick, tick + step
}

func clampAligned(tick float64, tickSpacing int32) int32 {
	lo, hi := UsableTickBounds(tickSpacing)
	if tick < float64(lo) {
		return lo
	}
	if tick > float64(hi) {
		return hi
	}
	return int32(tick)
}

func validPrice(field string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return model.NewInvalidInput(field, price, "must be a positive finite number")
	}
	return nil
}
