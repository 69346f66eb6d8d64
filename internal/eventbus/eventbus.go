package eventbus

import "context"

// Event is any value published on the untyped bus.
type Event any

// EventBus is the publish/subscribe contract shared by the allocator, the
// health monitor and their consumers.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus.
type Bus = TypedBus[Event]

// New creates a Bus with DefaultBuffer.
func New() *Bus { return NewTyped[Event]() }

// NewBuffered creates a Bus whose subscribers buffer up to n events.
func NewBuffered(n int) *Bus { return NewTypedBuffered[Event](n) }

// Consume subscribes to bus and calls fn for every event of type T, skipping
// the others. It stops when ctx is done or the bus is closed; the returned
// channel is closed once fn will no longer be called.
func Consume[T any](ctx context.Context, bus EventBus, fn func(T)) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(T); ok {
					fn(e)
				}
			}
		}
	}()
	return done
}
