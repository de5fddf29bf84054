package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the monitor's Prometheus collectors.
type Metrics struct {
	Checks          *prometheus.CounterVec
	Rebalances      *prometheus.CounterVec
	ActivePositions prometheus.Gauge
	SweepDuration   prometheus.Histogram
	LastSweep       prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rangekeeper",
				Subsystem: "monitor",
				Name:      "checks_total",
				Help:      "Position checks by outcome state",
			},
			[]string{"state"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rangekeeper",
				Subsystem: "monitor",
				Name:      "rebalances_total",
				Help:      "Rebalance attempts by final status",
			},
			[]string{"status"},
		),
		ActivePositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rangekeeper",
			Subsystem: "monitor",
			Name:      "active_positions",
			Help:      "Active positions seen by the last sweep",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rangekeeper",
			Subsystem: "monitor",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one sweep over all positions",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}),
		LastSweep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rangekeeper",
			Subsystem: "monitor",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished",
		}),
	}
}
