package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	allocationCycles *prometheus.CounterVec
	solveLatency     prometheus.Histogram
	derateAttempts   prometheus.Histogram
	wrenchErrorNorm  prometheus.Gauge
	droppedThrusters prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram, prometheus.Gauge, prometheus.Gauge) {
	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_requests_total",
			Help: "Wrench requests by outcome",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_solve_duration_seconds",
			Help:    "Time spent solving one allocation cycle, retries included",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)
	attempts := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_solve_attempts",
			Help:    "Solver attempts per allocation cycle",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 24},
		},
	)
	errNorm := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocation_wrench_error_norm",
			Help: "Norm of the last requested minus achieved wrench",
		},
	)
	dropped := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocation_dropped_thrusters",
			Help: "Number of thrusters currently excluded from allocation",
		},
	)
	return cycles, lat, attempts, errNorm, dropped
}

func init() {
	allocationCycles, solveLatency, derateAttempts, wrenchErrorNorm, droppedThrusters = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(allocationCycles, solveLatency, derateAttempts, wrenchErrorNorm, droppedThrusters)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	allocationCycles, solveLatency, derateAttempts, wrenchErrorNorm, droppedThrusters = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
