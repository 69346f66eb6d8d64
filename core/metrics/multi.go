package metrics

// MultiSink fans out allocation metrics to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllocation forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordAllocation(res AllocationResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordAllocation(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordDerate forwards de-rating retries.
func (m *MultiSink) RecordDerate(ev DerateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DerateRecorder); ok {
			if err := rec.RecordDerate(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordLayoutChange forwards fault reconfigurations.
func (m *MultiSink) RecordLayoutChange(ev LayoutChangeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LayoutRecorder); ok {
			if err := rec.RecordLayoutChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordThrusterStatus forwards health transitions.
func (m *MultiSink) RecordThrusterStatus(ev ThrusterStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ThrusterStatusRecorder); ok {
			if err := rec.RecordThrusterStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRejection forwards rejected requests.
func (m *MultiSink) RecordRejection(ev RejectionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RejectionRecorder); ok {
			if err := rec.RecordRejection(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
