package allocation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/thrustmapper/core/events"
	"github.com/kilianp07/thrustmapper/core/logger"
	"github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/kilianp07/thrustmapper/core/model"
	"github.com/kilianp07/thrustmapper/core/monitoring"
	coremqtt "github.com/kilianp07/thrustmapper/core/mqtt"
	"github.com/kilianp07/thrustmapper/core/thrusterstatus"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

const tracerName = "github.com/kilianp07/thrustmapper/core/allocation"

// SolveFunc computes a bounded thrust vector for one wrench.
type SolveFunc func(wrench []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution

// Result is the outcome of Handle. Accepted is false when the request was
// dropped by the rate limiter.
type Result struct {
	model.Allocation
	Accepted bool
}

// Allocator turns wrench requests into thrust commands. Requests and fault
// reconfigurations are serialized so a cycle never observes a partially
// updated layout.
type Allocator struct {
	mu        sync.Mutex
	cfg       Config
	layout    *Layout
	faults    *FaultState
	limiter   *RateLimiter
	solve     SolveFunc
	publisher coremqtt.Publisher
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus
	logger    logger.Logger
	status    thrusterstatus.Store
	tracer    trace.Tracer
	now       func() time.Time
	last      *model.Allocation
}

// cycle carries what a locked allocation produces for the unlocked emit stage.
type cycle struct {
	alloc   model.Allocation
	solve   time.Duration
	derates []float64
}

// NewAllocator creates an allocator for the layout. cfg is completed with
// defaults. A nil publisher or sink discards outputs.
func NewAllocator(layout *Layout, cfg Config, publisher coremqtt.Publisher, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Allocator, error) {
	if layout == nil || log == nil {
		return nil, fmt.Errorf("allocation: nil parameter provided to NewAllocator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = coremqtt.NopPublisher{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Allocator{
		cfg:       cfg,
		layout:    layout,
		faults:    NewFaultState(layout, cfg.MinCommandableThrust),
		limiter:   NewRateLimiter(cfg.MinInterval()),
		solve:     NewSolver(cfg).Solve,
		publisher: publisher,
		metrics:   sink,
		bus:       bus,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source used for rate limiting and the de-rating budget.
func (a *Allocator) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// SetSolveFunc replaces the solver.
func (a *Allocator) SetSolveFunc(fn SolveFunc) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	a.solve = fn
	a.mu.Unlock()
}

// SetTracer configures the tracer used for allocation spans.
func (a *Allocator) SetTracer(t trace.Tracer) {
	if t == nil {
		return
	}
	a.mu.Lock()
	a.tracer = t
	a.mu.Unlock()
}

// SetStatusStore configures the store used to persist thruster status
// information and seeds it with the layout.
func (a *Allocator) SetStatusStore(store thrusterstatus.Store) {
	a.mu.Lock()
	a.status = store
	snap := a.faults.Snapshot()
	a.mu.Unlock()
	if store == nil {
		return
	}
	for i := 0; i < a.layout.Len(); i++ {
		t := a.layout.Thruster(i)
		st := thrusterstatus.Status{Name: t.Name, MotorID: t.MotorID, CurrentStatus: thrusterstatus.StatusIdle, Alive: true}
		if snap.IsDropped(i) {
			st.Dropped = true
			st.CurrentStatus = thrusterstatus.StatusDropped
		}
		store.Set(st)
	}
}

// Layout returns the thruster layout.
func (a *Allocator) Layout() *Layout { return a.layout }

// Config returns the effective settings.
func (a *Allocator) Config() Config { return a.cfg }

// Thrusters returns the thruster names in column order.
func (a *Allocator) Thrusters() []string { return a.layout.Names() }

// Matrix returns the allocation matrix flattened in row-major order.
func (a *Allocator) Matrix() []float64 { return a.layout.Flatten() }

// Faults returns the current fault set and bounds.
func (a *Allocator) Faults() FaultSnapshot { return a.faults.Snapshot() }

// Dropped returns the names of the dropped thrusters in column order.
func (a *Allocator) Dropped() []string { return a.faults.Snapshot().Dropped }

// Last returns the most recent accepted allocation.
func (a *Allocator) Last() (model.Allocation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return model.Allocation{}, false
	}
	return *a.last, true
}

// Handle allocates one wrench request. Non-finite requests fail with
// ErrRequestRejected without consuming the rate limit. Requests arriving
// closer than the minimum interval to the previous accepted one return a
// Result with Accepted false and no error. ErrUnachievable is returned when no
// de-rated wrench could be solved; no commands are emitted in that case.
func (a *Allocator) Handle(ctx context.Context, req model.WrenchRequest) (Result, error) {
	a.mu.Lock()
	tracer := a.tracer
	a.mu.Unlock()
	ctx, span := tracer.Start(ctx, "allocation.handle")
	defer span.End()

	if !req.IsFinite() {
		err := fmt.Errorf("%w: non-finite wrench component", ErrRequestRejected)
		a.reject("invalid")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	a.mu.Lock()
	now := a.now()
	if !a.limiter.TryAccept(now) {
		a.mu.Unlock()
		a.reject("rate_limited")
		span.SetAttributes(attribute.Bool("allocation.accepted", false))
		return Result{}, nil
	}
	c, err := a.allocate(ctx, req, now)
	if err == nil {
		last := c.alloc
		a.last = &last
	}
	a.mu.Unlock()

	if err != nil {
		a.reject("unachievable")
		monitoring.CaptureException(err, map[string]string{"component": "allocator"})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Bool("allocation.accepted", true),
		attribute.String("allocation.cycle_id", c.alloc.CycleID),
		attribute.Int("allocation.attempts", c.alloc.Attempts),
		attribute.Float64("allocation.scale", c.alloc.Scale),
	)
	a.emit(ctx, c)
	return Result{Allocation: c.alloc, Accepted: true}, nil
}

// allocate runs the de-rating solve loop and post-processes the solution.
// The caller holds a.mu.
func (a *Allocator) allocate(ctx context.Context, req model.WrenchRequest, now time.Time) (cycle, error) {
	snap := a.faults.Snapshot()
	c := cycle{}
	scale := 1.0
	attempts := 0
	var sol Solution
	for {
		attempts++
		w := req.Wrench.Scale(scale).Vector()
		sol = a.solve(w, a.layout.b, snap.Bounds, a.layout.WarmStart(w, snap.Bounds))
		if sol.Success {
			break
		}
		if attempts >= a.cfg.MaxDerateAttempts {
			return c, fmt.Errorf("%w: no convergence after %d attempts", ErrUnachievable, attempts)
		}
		if elapsed := a.now().Sub(now); elapsed >= a.cfg.DerateBudget() {
			return c, fmt.Errorf("%w: de-rating budget of %s exhausted after %d attempts", ErrUnachievable, a.cfg.DerateBudget(), attempts)
		}
		if err := ctx.Err(); err != nil {
			return c, fmt.Errorf("%w: %w", ErrUnachievable, err)
		}
		scale *= a.cfg.DerateFactor
		c.derates = append(c.derates, scale)
	}
	c.solve = a.now().Sub(now)

	u := append([]float64(nil), sol.Thrust...)
	for i := range u {
		// Dropped thrusters are still commanded so recovered hardware can be detected.
		if snap.IsDropped(i) || math.Abs(u[i]) < a.cfg.MinCommandableThrust {
			u[i] = 0
		}
	}
	// Diagnostics describe the solved vector, before deadband and fault zeroing.
	achieved := a.layout.Apply(sol.Thrust)
	cmds := make([]model.ThrustCommand, len(u))
	for i, t := range u {
		cmds[i] = model.ThrustCommand{Name: a.layout.Thruster(i).Name, Thrust: t}
	}
	c.alloc = model.Allocation{
		CycleID:   uuid.NewString(),
		Timestamp: now,
		Frame:     a.cfg.Frame,
		Requested: req.Wrench,
		Achieved:  achieved,
		Error:     req.Wrench.Sub(achieved),
		Commands:  cmds,
		Scale:     scale,
		Attempts:  attempts,
		Dropped:   snap.Dropped,
	}
	return c, nil
}

// emit publishes the commands and records the cycle. Publish failures are
// logged and reported but do not fail the request. It runs outside a.mu, so
// two cycles are only published in solve order because the rate limiter keeps
// accepted requests at least MinInterval apart.
func (a *Allocator) emit(ctx context.Context, c cycle) {
	alloc := c.alloc
	if err := a.publisher.PublishAllocation(ctx, alloc); err != nil {
		a.logger.Errorf("publish allocation %s: %v", alloc.CycleID, err)
		monitoring.CaptureException(err, map[string]string{"component": "allocator", "cycle_id": alloc.CycleID})
	}

	outcome := "allocated"
	if alloc.Derated() {
		outcome = "derated"
		a.logger.Warnw("wrench de-rated", map[string]any{
			"cycle_id": alloc.CycleID,
			"scale":    alloc.Scale,
			"attempts": alloc.Attempts,
		})
	}
	allocationCycles.WithLabelValues(outcome).Inc()
	solveLatency.Observe(c.solve.Seconds())
	derateAttempts.Observe(float64(alloc.Attempts))
	wrenchErrorNorm.Set(alloc.Error.Norm())

	a.mu.Lock()
	status := a.status
	a.mu.Unlock()
	if status != nil {
		for _, cmd := range alloc.Commands {
			status.RecordCommand(cmd.Name, thrusterstatus.LastCommand{CycleID: alloc.CycleID, Thrust: cmd.Thrust, Timestamp: alloc.Timestamp})
		}
	}

	if err := a.metrics.RecordAllocation(metrics.AllocationResult{Allocation: alloc, SolveTime: c.solve, Component: "allocator"}); err != nil {
		a.logger.Errorf("metrics error: %v", err)
	}
	dr, recordDerate := a.metrics.(metrics.DerateRecorder)
	for i, s := range c.derates {
		if recordDerate {
			if err := dr.RecordDerate(metrics.DerateEvent{CycleID: alloc.CycleID, Attempt: i + 1, Scale: s, Time: alloc.Timestamp}); err != nil {
				a.logger.Errorf("derate metrics error: %v", err)
			}
		}
		if a.bus != nil {
			a.bus.Publish(events.DerateEvent{CycleID: alloc.CycleID, Attempt: i + 1, Scale: s})
		}
	}
	if a.bus != nil {
		a.bus.Publish(events.AllocationEvent{Allocation: alloc, Duration: c.solve})
	}
	a.logger.Debugw("allocation", map[string]any{
		"cycle_id":   alloc.CycleID,
		"attempts":   alloc.Attempts,
		"scale":      alloc.Scale,
		"error_norm": alloc.Error.Norm(),
	})
}

func (a *Allocator) reject(reason string) {
	allocationCycles.WithLabelValues(reason).Inc()
	if rr, ok := a.metrics.(metrics.RejectionRecorder); ok {
		if err := rr.RecordRejection(metrics.RejectionEvent{Reason: reason, Time: time.Now()}); err != nil {
			a.logger.Errorf("rejection metrics error: %v", err)
		}
	}
}

// UpdateLayout replaces the set of dropped thrusters. Unknown names fail with
// ErrInvalidThrusterID and leave the state untouched. Submitting the current
// set again does nothing.
func (a *Allocator) UpdateLayout(dropped []string) error {
	a.mu.Lock()
	changed, err := a.faults.Reconfigure(dropped)
	snap := a.faults.Snapshot()
	status := a.status
	now := a.now()
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if !changed {
		a.logger.Debugf("thruster layout unchanged")
		return nil
	}

	a.logger.Warnw("thruster layout reconfigured", map[string]any{
		"dropped": snap.Dropped,
		"active":  a.layout.Len() - len(snap.Dropped),
	})
	droppedThrusters.Set(float64(len(snap.Dropped)))
	if status != nil {
		for i := 0; i < a.layout.Len(); i++ {
			status.SetDropped(a.layout.Thruster(i).Name, snap.IsDropped(i))
		}
	}
	if lr, ok := a.metrics.(metrics.LayoutRecorder); ok {
		ev := metrics.LayoutChangeEvent{Dropped: snap.Dropped, Active: a.layout.Len() - len(snap.Dropped), Time: now}
		if err := lr.RecordLayoutChange(ev); err != nil {
			a.logger.Errorf("layout metrics error: %v", err)
		}
	}
	if a.bus != nil {
		a.bus.Publish(events.LayoutEvent{Dropped: snap.Dropped, Time: now})
	}
	return nil
}

// Run processes incoming wrench requests until the context is canceled or
// the channel is closed.
func (a *Allocator) Run(ctx context.Context, requests <-chan model.WrenchRequest) {
	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return
			}
			if _, err := a.Handle(ctx, req); err != nil {
				a.logger.Warnf("wrench request: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
