package rebalance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultPolicy()

	cases := []struct {
		name      string
		lower     int32
		upper     int32
		current   int32
		last      time.Time
		state     State
		rebalance bool
	}{
		{"centered just rebalanced", 1000, 1100, 1050, now, StateInRange, false},
		{"centered never rebalanced", 1000, 1100, 1050, time.Time{}, StateInRange, false},
		{"within threshold", 1000, 1100, 1055, now.Add(-2 * time.Hour), StateInRange, false},
		{"above range ignores cooldown", 1000, 1100, 1150, now, StateOutOfRange, true},
		{"below range", 1000, 1100, 900, now.Add(-2 * time.Hour), StateOutOfRange, true},
		{"on lower bound", 1000, 1100, 1000, now, StateOutOfRange, true},
		{"on upper bound", 1000, 1100, 1100, now, StateOutOfRange, true},
		{"deviated in cooldown", 1000, 1100, 1080, now.Add(-10 * time.Minute), StateCooldown, false},
		{"deviated after cooldown", 1000, 1100, 1080, now.Add(-61 * time.Minute), StateDeviated, true},
		{"deviated never rebalanced", 1000, 1100, 1020, time.Time{}, StateDeviated, true},
		{"negative ticks", -2000, -1000, -1500, now, StateInRange, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := policy.Decide(c.lower, c.upper, c.current, c.last, now)
			require.NoError(t, err)
			assert.Equal(t, c.state, d.State)
			assert.Equal(t, c.rebalance, d.Rebalance)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestDecideDeviationValue(t *testing.T) {
	d, err := DefaultPolicy().Decide(1000, 1100, 1080, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.3, d.Deviation, 1e-12)
}

func TestDecideCustomThreshold(t *testing.T) {
	p := Policy{DeviationThreshold: 0.4, MinInterval: time.Minute}
	d, err := p.Decide(1000, 1100, 1080, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StateInRange, d.State)
}

func TestDecideMalformedBounds(t *testing.T) {
	_, err := DefaultPolicy().Decide(1100, 1000, 1050, time.Time{}, time.Now())
	assert.Error(t, err)
	_, err = DefaultPolicy().Decide(1000, 1000, 1000, time.Time{}, time.Now())
	assert.Error(t, err)
}
