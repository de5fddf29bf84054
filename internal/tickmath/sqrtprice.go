package tickmath

import (
	"math"
	"math/big"
)

var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// SqrtPriceX96ToPrice converts a pool sqrtPriceX96 into a raw token1/token0 price.
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	price := new(big.Float).Mul(ratio, ratio)
	f, _ := price.Float64()
	return f
}

// PriceToSqrtPriceX96 is the inverse of SqrtPriceX96ToPrice.
func PriceToSqrtPriceX96(price float64) *big.Int {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return new(big.Int)
	}
	root := new(big.Float).SetFloat64(math.Sqrt(price))
	scaled := new(big.Float).Mul(root, q96)
	out, _ := scaled.Int(nil)
	return out
}

// HumanPrice adjusts a raw price for token decimals so it reads as whole
// token1 per whole token0.
func HumanPrice(rawPrice float64, decimals0, decimals1 uint8) float64 {
	return rawPrice * math.Pow10(int(decimals0)-int(decimals1))
}

// RawPrice is the inverse of HumanPrice.
func RawPrice(humanPrice float64, decimals0, decimals1 uint8) float64 {
	return humanPrice * math.Pow10(int(decimals1)-int(decimals0))
}
