// Package rebalance decides whether a position needs to be re-centered.
package rebalance

import (
	"fmt"
	"math"
	"time"

	"rangeKeeper/internal/model"
)

// State is the outcome of one evaluation.
type State string

const (
	StateInRange    State = "IN_RANGE"
	StateOutOfRange State = "OUT_OF_RANGE"
	StateDeviated   State = "DEVIATED"
	StateCooldown   State = "COOLDOWN"
)

const (
	DefaultDeviationThreshold = 0.05
	DefaultMinInterval        = time.Hour
)

// Policy holds the rebalance trigger settings.
type Policy struct {
	DeviationThreshold float64
	MinInterval        time.Duration
}

// DefaultPolicy returns a 5% deviation threshold and a one hour cooldown.
func DefaultPolicy() Policy {
	return Policy{DeviationThreshold: DefaultDeviationThreshold, MinInterval: DefaultMinInterval}
}

// Decision is the result of Decide.
type Decision struct {
	State     State
	Rebalance bool
	Reason    string
	Deviation float64
}

// Decide evaluates a position with ticks [lower, upper] at currentTick.
// A tick on either bound counts as out of range and always rebalances.
// Deviation beyond the threshold rebalances unless the last rebalance was
// less than MinInterval ago. A zero lastRebalance means never rebalanced.
func (p Policy) Decide(lower, upper, currentTick int32, lastRebalance, now time.Time) (Decision, error) {
	if lower >= upper {
		return Decision{}, model.NewInvalidInput("tick bounds", fmt.Sprintf("[%d,%d]", lower, upper), "lower must be below upper")
	}
	if currentTick <= lower || currentTick >= upper {
		return Decision{
			State:     StateOutOfRange,
			Rebalance: true,
			Reason:    "price out of range",
		}, nil
	}

	center := (float64(lower) + float64(upper)) / 2
	deviation := math.Abs(float64(currentTick)-center) / float64(upper-lower)
	if deviation <= p.DeviationThreshold {
		return Decision{State: StateInRange, Reason: "no rebalance needed", Deviation: deviation}, nil
	}

	if !lastRebalance.IsZero() {
		if since := now.Sub(lastRebalance); since < p.MinInterval {
			return Decision{
				State:     StateCooldown,
				Reason:    fmt.Sprintf("price deviated %.1f%% from center but last rebalance was %s ago", deviation*100, since.Round(time.Second)),
				Deviation: deviation,
			}, nil
		}
	}
	return Decision{
		State:     StateDeviated,
		Rebalance: true,
		Reason:    fmt.Sprintf("price deviated %.1f%% from center", deviation*100),
		Deviation: deviation,
	}, nil
}
