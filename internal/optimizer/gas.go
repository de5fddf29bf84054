package optimizer

import (
	"context"
	"math/big"

	"go.uber.org/zap"
)

// GasQuote is the input to a rebalance cost estimate.
type GasQuote struct {
	GasPriceGwei   float64
	NativeTokenUSD float64
}

// GasOracle supplies gas and native token prices.
type GasOracle interface {
	Quote(ctx context.Context) (GasQuote, error)
}

// StaticGasOracle always returns the configured quote.
type StaticGasOracle GasQuote

// Quote implements GasOracle.
func (s StaticGasOracle) Quote(context.Context) (GasQuote, error) {
	return GasQuote(s), nil
}

// GasPricer reports the network gas price in wei.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// NativePricer reports the native token price in USD.
type NativePricer interface {
	NativeTokenUSD(ctx context.Context) (float64, error)
}

// MarketGasOracle reads live prices and falls back to a static quote per field.
type MarketGasOracle struct {
	Gas      GasPricer
	Native   NativePricer
	Fallback GasQuote
	Logger   *zap.Logger
}

var weiPerGwei = big.NewFloat(1e9)

// Quote implements GasOracle.
func (m *MarketGasOracle) Quote(ctx context.Context) (GasQuote, error) {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	quote := m.Fallback

	if m.Gas != nil {
		wei, err := m.Gas.SuggestGasPrice(ctx)
		if err != nil {
			logger.Warn("gas price unavailable, using fallback", zap.Float64("gwei", quote.GasPriceGwei), zap.Error(err))
		} else if wei != nil {
			gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerGwei).Float64()
			quote.GasPriceGwei = gwei
		}
	}
	if m.Native != nil {
		usd, err := m.Native.NativeTokenUSD(ctx)
		if err != nil || usd <= 0 {
			logger.Warn("native token price unavailable, using fallback", zap.Float64("usd", quote.NativeTokenUSD), zap.Error(err))
		} else {
			quote.NativeTokenUSD = usd
		}
	}
	return quote, nil
}

// RebalanceCostUSD estimates the USD cost of one rebalance.
func RebalanceCostUSD(quote GasQuote, txCount int, gasPerTx uint64) float64 {
	totalGas := float64(txCount) * float64(gasPerTx)
	nativeCost := totalGas * quote.GasPriceGwei / 1e9
	return nativeCost * quote.NativeTokenUSD
}
