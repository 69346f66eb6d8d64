// Package health turns thruster status reports into layout reconfigurations.
package health

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/thrustmapper/config"
	"github.com/kilianp07/thrustmapper/core/events"
	"github.com/kilianp07/thrustmapper/core/monitoring"
	"github.com/kilianp07/thrustmapper/core/thrusterstatus"
	"github.com/kilianp07/thrustmapper/infra/logger"
	infmqtt "github.com/kilianp07/thrustmapper/infra/mqtt"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

const (
	ReasonReported = "reported"
	ReasonStale    = "stale"
)

// LayoutUpdater is the part of the allocator driven by the monitor.
type LayoutUpdater interface {
	Thrusters() []string
	Dropped() []string
	UpdateLayout(dropped []string) error
}

// StatusSource delivers thruster status messages.
type StatusSource interface {
	SubscribeStatus(h infmqtt.StatusHandler) error
}

// Monitor tracks thruster liveness. Dead thrusters are dropped from the
// layout and recovered ones restored. Thrusters dropped by other callers are
// left untouched.
type Monitor struct {
	cfg    config.HealthConfig
	layout LayoutUpdater
	store  thrusterstatus.Store
	bus    eventbus.EventBus
	typed  *eventbus.TypedBus[events.ThrusterStatusEvent]
	log    logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	order    []string
	alive    map[string]bool
	lastSeen map[string]time.Time
	// dropped is the set this monitor asked for.
	dropped map[string]bool
}

// NewMonitor creates a monitor for the thrusters of layout. store and bus
// are optional.
func NewMonitor(cfg config.HealthConfig, layout LayoutUpdater, store thrusterstatus.Store, bus eventbus.EventBus, log logger.Logger) *Monitor {
	cfg.SetDefaults()
	if log == nil {
		log = logger.New("health")
	}
	m := &Monitor{
		cfg:      cfg,
		layout:   layout,
		store:    store,
		bus:      bus,
		typed:    eventbus.NewTyped[events.ThrusterStatusEvent](),
		log:      log,
		now:      time.Now,
		order:    layout.Thrusters(),
		alive:    map[string]bool{},
		lastSeen: map[string]time.Time{},
		dropped:  map[string]bool{},
	}
	start := m.now()
	for _, name := range m.order {
		m.alive[name] = true
		m.lastSeen[name] = start
	}
	return m
}

// SetClock overrides the time source.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	start := now()
	for name := range m.lastSeen {
		m.lastSeen[name] = start
	}
}

// Transitions returns a channel of liveness transitions. Delivery is
// non-blocking; slow readers miss events.
func (m *Monitor) Transitions() <-chan events.ThrusterStatusEvent { return m.typed.Subscribe() }

// Run subscribes to src and checks staleness until ctx is done.
func (m *Monitor) Run(ctx context.Context, src StatusSource) error {
	if err := src.SubscribeStatus(m.HandleStatus); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer m.typed.Close()
	if m.cfg.StaleAfterMS <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.CheckInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckStale()
		}
	}
}

// HandleStatus records a status report for name. Unknown names are ignored.
func (m *Monitor) HandleStatus(name string, alive bool, at time.Time) {
	lastStatus.Set(float64(at.Unix()))
	m.mu.Lock()
	prev, known := m.alive[name]
	if !known {
		m.mu.Unlock()
		m.log.Warnf("status for unknown thruster %s ignored", name)
		return
	}
	m.lastSeen[name] = at
	m.alive[name] = alive
	m.mu.Unlock()

	if m.store != nil {
		m.store.MarkSeen(name, alive, at)
	}
	if prev != alive {
		m.transition(name, alive, ReasonReported, at)
	}
	m.reconcile()
}

// CheckStale marks thrusters dead when their last report is older than the
// staleness timeout.
func (m *Monitor) CheckStale() {
	if m.cfg.StaleAfterMS <= 0 {
		return
	}
	m.mu.Lock()
	now := m.now()
	var stale []string
	for _, name := range m.order {
		if m.alive[name] && now.Sub(m.lastSeen[name]) > m.cfg.StaleAfter() {
			m.alive[name] = false
			stale = append(stale, name)
		}
	}
	m.mu.Unlock()
	if len(stale) == 0 {
		return
	}
	for _, name := range stale {
		if m.store != nil {
			m.store.MarkSeen(name, false, now)
		}
		m.transition(name, false, ReasonStale, now)
	}
	m.reconcile()
}

func (m *Monitor) transition(name string, alive bool, reason string, at time.Time) {
	statusTransitions.WithLabelValues(reason, strconv.FormatBool(alive)).Inc()
	if alive {
		m.log.Infof("thruster %s alive (%s)", name, reason)
	} else {
		m.log.Warnw("thruster dead", map[string]any{"thruster": name, "reason": reason})
	}
	ev := events.ThrusterStatusEvent{Name: name, Alive: alive, Reason: reason, Time: at}
	m.typed.Publish(ev)
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// reconcile requests a new layout when the set of dead thrusters differs from
// the one last applied by the monitor.
func (m *Monitor) reconcile() {
	m.mu.Lock()
	want := map[string]bool{}
	for name, ok := range m.alive {
		if !ok {
			want[name] = true
		}
	}
	if sameSet(want, m.dropped) {
		m.mu.Unlock()
		return
	}
	prev := m.dropped
	m.mu.Unlock()

	current := map[string]bool{}
	for _, name := range m.layout.Dropped() {
		if !prev[name] {
			current[name] = true
		}
	}
	var dropped []string
	for _, name := range m.order {
		if current[name] || want[name] {
			dropped = append(dropped, name)
		}
	}
	if err := m.layout.UpdateLayout(dropped); err != nil {
		reconfigFailures.Inc()
		m.log.Errorf("layout update failed: %v", err)
		monitoring.CaptureException(err, map[string]string{"module": "health"})
		return
	}
	m.mu.Lock()
	m.dropped = want
	m.mu.Unlock()
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
