package logging

import (
	"context"

	"github.com/kilianp07/thrustmapper/core/events"
	"github.com/kilianp07/thrustmapper/core/logger"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

// StartRecorder appends every AllocationEvent published on bus to store until
// ctx is canceled or the bus is closed. The returned channel is closed once
// the recorder has stopped.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store LogStore, log logger.Logger) <-chan struct{} {
	if bus == nil || store == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return eventbus.Consume(ctx, bus, func(e events.AllocationEvent) {
		if err := store.Append(ctx, FromAllocation(e.Allocation, e.Duration)); err != nil && log != nil {
			log.Errorf("allocation log append: %v", err)
		}
	})
}
