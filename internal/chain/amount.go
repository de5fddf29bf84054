package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToRaw converts a whole-token amount to base units, truncating dust.
func ToRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	if amount.Sign() <= 0 {
		return new(big.Int)
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromRaw converts base units to a whole-token amount.
func FromRaw(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// ParseRaw parses a base-10 integer string into base units.
func ParseRaw(value string) *big.Int {
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return new(big.Int)
	}
	return out
}
