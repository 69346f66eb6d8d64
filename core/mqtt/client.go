package mqtt

import (
	"context"

	"github.com/kilianp07/thrustmapper/core/model"
)

// Publisher sends allocation results to the thruster drivers.
type Publisher interface {
	// PublishAllocation emits the thrust commands followed by the achieved
	// and error wrench diagnostics.
	PublishAllocation(ctx context.Context, a model.Allocation) error
}

// WrenchSource delivers wrench requests from the guidance layer.
type WrenchSource interface {
	Wrenches() <-chan model.WrenchRequest
}

// NopPublisher discards every allocation.
type NopPublisher struct{}

func (NopPublisher) PublishAllocation(context.Context, model.Allocation) error { return nil }
