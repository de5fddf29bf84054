package optimizer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangeKeeper/internal/model"
)

type fakeHistory struct {
	points []model.PricePoint
	err    error
	window time.Duration
}

func (f *fakeHistory) History(_ context.Context, _ string, window time.Duration) ([]model.PricePoint, error) {
	f.window = window
	return f.points, f.err
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func hourly(prices ...float64) []model.PricePoint {
	out := make([]model.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = model.PricePoint{Timestamp: testNow.Add(-time.Duration(len(prices)-i) * time.Hour), Price: p}
	}
	return out
}

func newTestOptimizer(t *testing.T, cfg Config, history PriceHistory) *Optimizer {
	t.Helper()
	o, err := New(cfg, history, StaticGasOracle{GasPriceGwei: 0.05, NativeTokenUSD: 3000}, nil)
	require.NoError(t, err)
	o.now = func() time.Time { return testNow }
	return o
}

func wethUSDC(feeTier uint32) model.PoolSnapshot {
	return model.PoolSnapshot{
		Address:   "0xd0b53D9277642d899DF5C87A3966A349A798F224",
		Decimals0: 18,
		Decimals1: 6,
		FeeTier:   feeTier,
	}
}

func TestCalculateOptimalRangeInvariants(t *testing.T) {
	series := [][]float64{
		{3000},
		{3000, 3001, 2999, 3002, 3000},
		{3000, 3300, 2700, 3500, 2500, 3600},
	}
	for _, fee := range []uint32{500, 3000, 10000} {
		for _, profile := range []string{ProfileConcentratedFollower, ProfileMultiPosition} {
			for _, prices := range series {
				cfg := DefaultConfig()
				o := newTestOptimizer(t, cfg, &fakeHistory{points: hourly(prices...)})
				rec, err := o.CalculateOptimalRange(context.Background(), wethUSDC(fee), 3000, 5000, profile)
				require.NoError(t, err)

				spacing := cfg.FeeTierSpacing[fee]
				assert.Less(t, rec.LowerTick, rec.UpperTick)
				assert.Zero(t, rec.LowerTick%spacing, "lower aligned")
				assert.Zero(t, rec.UpperTick%spacing, "upper aligned")
				width := rec.UpperTick - rec.LowerTick
				assert.GreaterOrEqual(t, width, cfg.MinTickRange*spacing)
				assert.LessOrEqual(t, width, cfg.MaxTickRange*spacing)
				assert.Less(t, rec.LowerPrice, 3000.0)
				assert.Greater(t, rec.UpperPrice, 3000.0)
				assert.GreaterOrEqual(t, rec.Volatility, 0.0)
				assert.Greater(t, rec.Concentration, 0.0)
				assert.Less(t, rec.Concentration, 1.0)
				assert.GreaterOrEqual(t, rec.PriceRangePercent, 0.01)
				assert.LessOrEqual(t, rec.PriceRangePercent, 0.5)
				assert.GreaterOrEqual(t, rec.TargetDurationHours, 1.0)
				assert.LessOrEqual(t, rec.TargetDurationHours, 72.0)
				assert.Equal(t, profile, rec.Profile)
			}
		}
	}
}

func TestCalculateOptimalRangeMetadata(t *testing.T) {
	history := &fakeHistory{points: hourly(3000, 3030, 3000)}
	o := newTestOptimizer(t, DefaultConfig(), history)

	rec, err := o.CalculateOptimalRange(context.Background(), wethUSDC(500), 3000, 1000, ProfileConcentratedFollower)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, history.window)
	// 5 tx * 500k gas * 0.05 gwei = 0.000125 ETH at $3000.
	assert.InDelta(t, 0.375, rec.EstimatedGasCostUSD, 1e-9)
	assert.InDelta(t, 0.000375, rec.GasCostRatio, 1e-12)
	assert.Greater(t, rec.Volatility, 0.0)
	assert.Equal(t, int32(10), rec.TickSpacing)
}

func TestCalculateOptimalRangeMultiPositionIsWider(t *testing.T) {
	prices := hourly(3000, 3060, 2990, 3100, 3010)
	follower, err := newTestOptimizer(t, DefaultConfig(), &fakeHistory{points: prices}).
		CalculateOptimalRange(context.Background(), wethUSDC(3000), 3000, 5000, ProfileConcentratedFollower)
	require.NoError(t, err)
	multi, err := newTestOptimizer(t, DefaultConfig(), &fakeHistory{points: prices}).
		CalculateOptimalRange(context.Background(), wethUSDC(3000), 3000, 5000, ProfileMultiPosition)
	require.NoError(t, err)

	assert.Less(t, multi.Concentration, follower.Concentration)
	assert.Greater(t, multi.PriceRangePercent, follower.PriceRangePercent)
}

func TestCalculateOptimalRangeErrors(t *testing.T) {
	o := newTestOptimizer(t, DefaultConfig(), &fakeHistory{points: hourly(1, 1)})
	ctx := context.Background()

	_, err := o.CalculateOptimalRange(ctx, wethUSDC(2500), 3000, 1000, "")
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "unknown fee tier: %v", err)

	_, err = o.CalculateOptimalRange(ctx, wethUSDC(500), 3000, 1000, "yolo")
	require.True(t, errors.As(err, &cfgErr), "unknown profile: %v", err)

	var invalid *model.InvalidInputError
	_, err = o.CalculateOptimalRange(ctx, wethUSDC(500), -1, 1000, "")
	require.True(t, errors.As(err, &invalid))
	_, err = o.CalculateOptimalRange(ctx, wethUSDC(500), 3000, 0, "")
	require.True(t, errors.As(err, &invalid))

	failing := newTestOptimizer(t, DefaultConfig(), &fakeHistory{err: errors.New("feed down")})
	_, err = failing.CalculateOptimalRange(ctx, wethUSDC(500), 3000, 1000, "")
	require.ErrorContains(t, err, "feed down")
}

func TestCalculateOptimalRangeFallsBackToSnapshotSpacing(t *testing.T) {
	o := newTestOptimizer(t, DefaultConfig(), &fakeHistory{points: hourly(1, 1)})
	pool := wethUSDC(2500)
	pool.TickSpacing = 50
	rec, err := o.CalculateOptimalRange(context.Background(), pool, 3000, 1000, "")
	require.NoError(t, err)
	assert.Zero(t, rec.LowerTick%50)
	assert.Zero(t, rec.UpperTick%50)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.MaxTickRange = 10
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(cfg.Validate(), &cfgErr))

	cfg = DefaultConfig()
	cfg.FeeTierSpacing = map[uint32]int32{500: 0}
	require.Error(t, cfg.Validate())
}

func TestFormulaHelpers(t *testing.T) {
	p, err := LookupProfile(ProfileConcentratedFollower)
	require.NoError(t, err)
	assert.Equal(t, 6.0, TargetDuration(p, 0, 0))
	assert.Equal(t, 72.0, TargetDuration(p, 5, 1))
	assert.InDelta(t, 6*1.2*1.2, TargetDuration(p, 0.02, 0.01), 1e-9)

	assert.Equal(t, 0.9, Concentration(0, 24, 0.02))
	assert.Equal(t, 0.1, Concentration(1, 24, 0.02))
	assert.InDelta(t, 0.5, Concentration(0.02, 24, 0.02), 1e-12)

	assert.Equal(t, 0.01, PriceRangePercent(0, 0.9, 24))
	assert.Equal(t, 0.5, PriceRangePercent(1, 0.1, 24))
	assert.InDelta(t, 0.05*2*(1-0.5*0.7), PriceRangePercent(0.05, 0.5, 24), 1e-12)
}

type stubGas struct {
	wei *big.Int
	err error
}

func (s stubGas) SuggestGasPrice(context.Context) (*big.Int, error) { return s.wei, s.err }

type stubNative struct {
	usd float64
	err error
}

func (s stubNative) NativeTokenUSD(context.Context) (float64, error) { return s.usd, s.err }

func TestMarketGasOracle(t *testing.T) {
	fallback := GasQuote{GasPriceGwei: 0.05, NativeTokenUSD: 3000}

	live := &MarketGasOracle{Gas: stubGas{wei: big.NewInt(2_000_000_000)}, Native: stubNative{usd: 3500}, Fallback: fallback}
	q, err := live.Quote(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, q.GasPriceGwei, 1e-12)
	assert.Equal(t, 3500.0, q.NativeTokenUSD)

	down := &MarketGasOracle{Gas: stubGas{err: errors.New("rpc")}, Native: stubNative{err: errors.New("http")}, Fallback: fallback}
	q, err = down.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallback, q)

	assert.InDelta(t, 0.375, RebalanceCostUSD(fallback, 5, 500_000), 1e-12)
}
