package volatility

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangeKeeper/internal/model"
)

func TestVolatilityInsufficientSamples(t *testing.T) {
	v, err := Volatility(nil, 0)
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = Volatility([]float64{100}, 0)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestVolatilityPopulationStdDev(t *testing.T) {
	v, err := Volatility([]float64{100, 102, 99, 101, 103}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.1396966618705933, v, 1e-9)
}

func TestVolatilityTrailingWindow(t *testing.T) {
	// The leading jump falls outside the window.
	prices := []float64{10, 100, 100, 100, 100}
	v, err := Volatility(prices, 4)
	require.NoError(t, err)
	assert.Zero(t, v)

	all, err := Volatility(prices, 0)
	require.NoError(t, err)
	assert.Greater(t, all, 0.0)
}

func TestVolatilityRejectsNonPositivePrice(t *testing.T) {
	_, err := Volatility([]float64{100, 0, 101}, 0)
	var invalid *model.InvalidInputError
	require.True(t, errors.As(err, &invalid))
}

func TestSampleWindowAndOrder(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	points := []model.PricePoint{
		{Timestamp: now.Add(-1 * time.Hour), Price: 101},
		{Timestamp: now.Add(-3 * time.Hour), Price: 100},
		{Timestamp: now.Add(-2 * time.Hour), Price: 102},
		{Timestamp: now.Add(-48 * time.Hour), Price: 10},
		{Timestamp: now.Add(time.Hour), Price: 1000},
	}
	sample, err := Sample(points, 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 3, sample.Samples)
	assert.Equal(t, 24*time.Hour, sample.Window)

	want, err := Volatility([]float64{100, 102, 101}, 0)
	require.NoError(t, err)
	assert.InDelta(t, want, sample.StdDevPct, 1e-12)
}

func TestOutOfRangeProbabilityReference(t *testing.T) {
	cases := []struct {
		vol     float64
		ticks   int32
		horizon float64
		want    float64
	}{
		{2.0, 500, 60, 0},
		{2.0, 50, 1440, 80.25873486341526},
		{1.5, 100, 180, 5.934643879191981},
	}
	for _, c := range cases {
		got, err := OutOfRangeProbability(c.vol, c.ticks, c.horizon)
		require.NoError(t, err)
		assert.InDelta(t, c.want, got, 1e-6, "vol=%v ticks=%d horizon=%v", c.vol, c.ticks, c.horizon)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestOutOfRangeProbabilityMonotonic(t *testing.T) {
	prev := -1.0
	for _, h := range []float64{1, 5, 15, 60, 240, 720, 1440, 10080} {
		p, err := OutOfRangeProbability(3, 100, h)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, prev, "horizon %v", h)
		prev = p
	}

	prev = -1.0
	for _, v := range []float64{0, 0.1, 0.5, 1, 2, 5, 10, 50} {
		p, err := OutOfRangeProbability(v, 100, 60)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, prev, "volatility %v", v)
		prev = p
	}
}

func TestOutOfRangeProbabilityInvalid(t *testing.T) {
	_, err := OutOfRangeProbability(-1, 100, 60)
	assert.Error(t, err)
	_, err = OutOfRangeProbability(1, 0, 60)
	assert.Error(t, err)
	_, err = OutOfRangeProbability(1, 100, 0)
	assert.Error(t, err)
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevel(19.99))
	assert.Equal(t, RiskMedium, RiskLevel(20))
	assert.Equal(t, RiskMedium, RiskLevel(49.9))
	assert.Equal(t, RiskHigh, RiskLevel(50))
	assert.Contains(t, Recommendation(75), "High risk")
}

func TestAnalyze(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var points []model.PricePoint
	for i := 0; i < 30; i++ {
		points = append(points, model.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: float64(100 + i)})
	}
	a, err := Analyze(points)
	require.NoError(t, err)
	assert.Equal(t, 129.0, a.CurrentPrice)
	require.Len(t, a.Ranges, 3)
	assert.Equal(t, PriceRange{Label: "1d", Low: 106, High: 129}, a.Ranges[0])
	assert.Equal(t, PriceRange{Label: "30d", Low: 100, High: 129}, a.Ranges[1])
	assert.Less(t, a.Bands.Lower2, a.Bands.Lower1)
	assert.Less(t, a.Bands.Upper1, a.Bands.Upper2)

	_, err = Analyze(nil)
	assert.Error(t, err)
}

func TestStrategyFor(t *testing.T) {
	s, err := StrategyFor(RiskLow, 3.5)
	require.NoError(t, err)
	assert.Equal(t, int32(200), s.TickRange)
	assert.Equal(t, 5*time.Minute, s.CheckInterval)

	s, err = StrategyFor(RiskHigh, 40)
	require.NoError(t, err)
	assert.Equal(t, int32(80), s.TickRange)

	_, err = StrategyFor("reckless", 1)
	assert.Error(t, err)
}
