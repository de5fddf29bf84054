package tickmath

import (
	"math"

	"rangeKeeper/internal/model"
)

// AmountsForLiquidity returns the token0 and token1 amounts backing liquidity
// in [priceLower, priceUpper] at priceCurrent. A current price on either bound
// is treated as outside the range.
func AmountsForLiquidity(liquidity, priceCurrent, priceLower, priceUpper float64) (float64, float64, error) {
	if math.IsNaN(liquidity) || liquidity < 0 {
		return 0, 0, model.NewInvalidInput("liquidity", liquidity, "must be non-negative")
	}
	sa, sb, sp, err := sqrtBounds(priceCurrent, priceLower, priceUpper)
	if err != nil {
		return 0, 0, err
	}

	switch {
	case priceCurrent <= priceLower:
		return liquidity * (sb - sa) / (sa * sb), 0, nil
	case priceCurrent >= priceUpper:
		return 0, liquidity * (sb - sa), nil
	default:
		amount0 := liquidity * (sb - sp) / (sp * sb)
		amount1 := liquidity * (sp - sa)
		return amount0, amount1, nil
	}
}

// LiquidityForAmounts is the inverse of AmountsForLiquidity. Inside the range
// the smaller of the two per-token liquidities is returned.
func LiquidityForAmounts(amount0, amount1, priceCurrent, priceLower, priceUpper float64) (float64, error) {
	if math.IsNaN(amount0) || math.IsNaN(amount1) || amount0 < 0 || amount1 < 0 {
		return 0, model.NewInvalidInput("amounts", []float64{amount0, amount1}, "must be non-negative")
	}
	sa, sb, sp, err := sqrtBounds(priceCurrent, priceLower, priceUpper)
	if err != nil {
		return 0, err
	}

	switch {
	case priceCurrent <= priceLower:
		return amount0 * sa * sb / (sb - sa), nil
	case priceCurrent >= priceUpper:
		return amount1 / (sb - sa), nil
	default:
		l0 := amount0 * sp * sb / (sb - sp)
		l1 := amount1 / (sp - sa)
		return math.Min(l0, l1), nil
	}
}

func sqrtBounds(priceCurrent, priceLower, priceUpper float64) (float64, float64, float64, error) {
	if err := validPrice("current price", priceCurrent); err != nil {
		return 0, 0, 0, err
	}
	if err := validPrice("lower price", priceLower); err != nil {
		return 0, 0, 0, err
	}
	if err := validPrice("upper price", priceUpper); err != nil {
		return 0, 0, 0, err
	}
	if priceLower >= priceUpper {
		return 0, 0, 0, model.NewInvalidInput("price bounds", []float64{priceLower, priceUpper}, "lower must be below upper")
	}
	return math.Sqrt(priceLower), math.Sqrt(priceUpper), math.Sqrt(priceCurrent), nil
}
