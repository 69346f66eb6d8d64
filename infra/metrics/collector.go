package metrics

import (
	"context"

	"github.com/kilianp07/thrustmapper/core/events"
	coremetrics "github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records thruster
// health transitions. Allocation, derate and layout metrics are recorded by
// the allocator itself. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	r, ok := sink.(coremetrics.ThrusterStatusRecorder)
	if !ok {
		return
	}
	eventbus.Consume(ctx, bus, func(e events.ThrusterStatusEvent) {
		_ = r.RecordThrusterStatus(coremetrics.ThrusterStatusEvent{
			Name:   e.Name,
			Alive:  e.Alive,
			Reason: e.Reason,
			Time:   e.Time,
		})
	})
}
