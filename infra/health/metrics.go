package health

import "github.com/prometheus/client_golang/prometheus"

var (
	statusTransitions *prometheus.CounterVec
	reconfigFailures  prometheus.Counter
	lastStatus        prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Gauge) {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thruster_status_transitions_total",
			Help: "Thruster liveness transitions observed by the health monitor",
		}, []string{"reason", "alive"}),
		prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thruster_reconfiguration_failures_total",
			Help: "Layout reconfigurations requested by the health monitor that failed",
		}),
		prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thruster_status_last_message_timestamp_seconds",
			Help: "Unix timestamp of the last thruster status message",
		})
}

func init() {
	statusTransitions, reconfigFailures, lastStatus = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers health metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(statusTransitions, reconfigFailures, lastStatus)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	statusTransitions, reconfigFailures, lastStatus = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
