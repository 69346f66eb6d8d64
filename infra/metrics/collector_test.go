package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/thrustmapper/core/events"
	coremetrics "github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

type statusSink struct {
	coremetrics.NopSink
	mu  sync.Mutex
	evs []coremetrics.ThrusterStatusEvent
}

func (s *statusSink) RecordThrusterStatus(ev coremetrics.ThrusterStatusEvent) error {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
	return nil
}

func (s *statusSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evs)
}

func TestEventCollectorRecordsStatus(t *testing.T) {
	bus := eventbus.New()
	sink := &statusSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	assert.Eventually(t, func() bool {
		bus.Publish(events.ThrusterStatusEvent{Name: "FLH", Alive: false, Reason: "stale", Time: time.Now()})
		return sink.count() > 0
	}, time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "FLH", sink.evs[0].Name)
	assert.Equal(t, "stale", sink.evs[0].Reason)
	assert.False(t, sink.evs[0].Alive)
}
