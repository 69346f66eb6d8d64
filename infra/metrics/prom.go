package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records per-thruster allocation data in Prometheus metrics.
type PromSink struct {
	thrust     *prometheus.GaugeVec
	derates    prometheus.Counter
	scale      prometheus.Gauge
	active     prometheus.Gauge
	alive      *prometheus.GaugeVec
	rejections *prometheus.CounterVec
}

// NewPromSink registers allocation metrics on the default Prometheus registerer.
// The metrics endpoint is served separately by the application.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		thrust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thruster_command_newtons",
			Help: "Last thrust command sent to each thruster",
		}, []string{"thruster"}),
		derates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocation_derate_total",
			Help: "Number of de-rated solve retries",
		}),
		scale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "allocation_wrench_scale",
			Help: "Scale applied to the last allocated wrench",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "layout_active_thrusters",
			Help: "Number of thrusters not dropped from the layout",
		}),
		alive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thruster_alive",
			Help: "Last reported liveness of each thruster",
		}, []string{"thruster"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrench_rejections_total",
			Help: "Wrench requests that were not allocated",
		}, []string{"reason"}),
	}

	var err error
	if s.thrust, err = register(reg, s.thrust); err != nil {
		return nil, err
	}
	if s.derates, err = register(reg, s.derates); err != nil {
		return nil, err
	}
	if s.scale, err = register(reg, s.scale); err != nil {
		return nil, err
	}
	if s.active, err = register(reg, s.active); err != nil {
		return nil, err
	}
	if s.alive, err = register(reg, s.alive); err != nil {
		return nil, err
	}
	if s.rejections, err = register(reg, s.rejections); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c is a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAllocation sets the per-thruster thrust gauges.
func (s *PromSink) RecordAllocation(res coremetrics.AllocationResult) error {
	for _, c := range res.Allocation.Commands {
		s.thrust.WithLabelValues(c.Name).Set(c.Thrust)
	}
	s.scale.Set(res.Allocation.Scale)
	return nil
}

// RecordDerate counts de-rated retries.
func (s *PromSink) RecordDerate(coremetrics.DerateEvent) error {
	s.derates.Inc()
	return nil
}

// RecordLayoutChange tracks the active thruster count.
func (s *PromSink) RecordLayoutChange(ev coremetrics.LayoutChangeEvent) error {
	s.active.Set(float64(ev.Active))
	for _, name := range ev.Dropped {
		s.thrust.WithLabelValues(name).Set(0)
	}
	return nil
}

// RecordThrusterStatus sets the liveness gauge to 1 or 0.
func (s *PromSink) RecordThrusterStatus(ev coremetrics.ThrusterStatusEvent) error {
	v := 0.0
	if ev.Alive {
		v = 1
	}
	s.alive.WithLabelValues(ev.Name).Set(v)
	return nil
}

// RecordRejection counts rejected requests by reason.
func (s *PromSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	s.rejections.WithLabelValues(ev.Reason).Inc()
	return nil
}

func boolLabel(b bool) string { return strconv.FormatBool(b) }
