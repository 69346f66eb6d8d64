package allocation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/events"
	"github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/kilianp07/thrustmapper/core/model"
	"github.com/kilianp07/thrustmapper/core/thrusterstatus"
	"github.com/kilianp07/thrustmapper/infra/logger"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

type mockPublisher struct {
	mu    sync.Mutex
	sent  []model.Allocation
	fails bool
}

func (m *mockPublisher) PublishAllocation(_ context.Context, a model.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, a)
	if m.fails {
		return errors.New("broker down")
	}
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingSink struct {
	metrics.NopSink
	mu      sync.Mutex
	allocs  []metrics.AllocationResult
	derates []metrics.DerateEvent
	layouts []metrics.LayoutChangeEvent
	rejects []string
}

func (r *recordingSink) RecordAllocation(res metrics.AllocationResult) error {
	r.mu.Lock()
	r.allocs = append(r.allocs, res)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) RecordDerate(ev metrics.DerateEvent) error {
	r.mu.Lock()
	r.derates = append(r.derates, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) RecordLayoutChange(ev metrics.LayoutChangeEvent) error {
	r.mu.Lock()
	r.layouts = append(r.layouts, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) RecordRejection(ev metrics.RejectionEvent) error {
	r.mu.Lock()
	r.rejects = append(r.rejects, ev.Reason)
	r.mu.Unlock()
	return nil
}

type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestAllocator(t *testing.T, cfg Config) (*Allocator, *mockPublisher, *recordingSink, *fakeClock) {
	t.Helper()
	pub := &mockPublisher{}
	sink := &recordingSink{}
	a, err := NewAllocator(coupleLayout(t), cfg, pub, sink, nil, logger.NopLogger{})
	require.NoError(t, err)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	a.SetClock(clock.now)
	return a, pub, sink, clock
}

func yawRequest(tz float64) model.WrenchRequest {
	return model.WrenchRequest{Wrench: model.Wrench{Torque: r3.Vec{Z: tz}}}
}

func TestNewAllocator_NilParams(t *testing.T) {
	_, err := NewAllocator(nil, Config{}, nil, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
	_, err = NewAllocator(coupleLayout(t), Config{DerateFactor: 1.5}, nil, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
}

func TestAllocator_PureYaw(t *testing.T) {
	a, pub, sink, _ := newTestAllocator(t, Config{})
	res, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	require.Len(t, res.Commands, 4)
	assert.Equal(t, "t1", res.Commands[0].Name)
	assert.InDelta(t, -0.833, res.Commands[0].Thrust, 1e-3)
	assert.InDelta(t, 0.833, res.Commands[1].Thrust, 1e-3)
	assert.InDelta(t, -0.833, res.Commands[2].Thrust, 1e-3)
	assert.InDelta(t, 0.833, res.Commands[3].Thrust, 1e-3)

	want := yaw(1)
	got := res.Achieved.Vector()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3)
	}
	assert.InDelta(t, 0, res.Error.Norm(), 1e-3)
	assert.Equal(t, 1.0, res.Scale)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "base_link", res.Frame)
	assert.NotEmpty(t, res.CycleID)

	assert.Equal(t, 1, pub.count())
	assert.Len(t, sink.allocs, 1)
	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, res.CycleID, last.CycleID)
}

func TestAllocator_RateLimit(t *testing.T) {
	a, pub, sink, clock := newTestAllocator(t, Config{})
	ctx := context.Background()

	res, err := a.Handle(ctx, yawRequest(1))
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	clock.advance(10 * time.Millisecond)
	res, err = a.Handle(ctx, yawRequest(1))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Empty(t, res.Commands)

	clock.advance(10 * time.Millisecond)
	res, err = a.Handle(ctx, yawRequest(1))
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	clock.advance(30 * time.Millisecond)
	res, err = a.Handle(ctx, yawRequest(1))
	require.NoError(t, err)
	assert.True(t, res.Accepted, "request 50ms after the last accepted one")

	assert.Equal(t, 2, pub.count())
	assert.Equal(t, []string{"rate_limited", "rate_limited"}, sink.rejects)
}

func TestAllocator_NonFiniteRejected(t *testing.T) {
	a, pub, _, _ := newTestAllocator(t, Config{})
	req := yawRequest(math.NaN())
	_, err := a.Handle(context.Background(), req)
	assert.True(t, errors.Is(err, ErrRequestRejected))

	req = model.WrenchRequest{Wrench: model.Wrench{Force: r3.Vec{X: math.Inf(1)}}}
	_, err = a.Handle(context.Background(), req)
	assert.True(t, errors.Is(err, ErrRequestRejected))

	// The rejected requests did not consume the admission slot.
	res, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, pub.count())
}

func TestAllocator_Deadband(t *testing.T) {
	a, _, _, _ := newTestAllocator(t, Config{})
	res, err := a.Handle(context.Background(), yawRequest(0.005))
	require.NoError(t, err)
	for _, c := range res.Commands {
		assert.Equal(t, 0.0, c.Thrust, c.Name)
	}
	// Diagnostics come from the solved vector, not the zeroed commands.
	assert.InDelta(t, 0.005, res.Achieved.Torque.Z, 1e-5)
	assert.InDelta(t, 0, res.Error.Norm(), 1e-5)
}

func TestAllocator_ConcurrentReconfigure(t *testing.T) {
	a, _, _, clock := newTestAllocator(t, Config{})
	clock.step = time.Second
	sets := [][]string{{"t1"}, {"t2", "t4"}}
	require.NoError(t, a.UpdateLayout(sets[0]))

	const cycles = 200
	results := make(chan Result, cycles)
	errs := make(chan error, cycles)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < cycles; i++ {
			res, err := a.Handle(context.Background(), yawRequest(1))
			if err != nil {
				errs <- err
				continue
			}
			results <- res
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < cycles; i++ {
			if err := a.UpdateLayout(sets[i%2]); err != nil {
				errs <- err
			}
		}
	}()
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	n := 0
	for res := range results {
		n++
		require.True(t, res.Accepted)
		assert.Contains(t, sets, res.Dropped)
		for _, name := range res.Dropped {
			thrust, ok := res.Thrust(name)
			require.True(t, ok, name)
			assert.Equal(t, 0.0, thrust, "cycle %s thruster %s", res.CycleID, name)
		}
	}
	assert.Equal(t, cycles, n)
}

func TestAllocator_DroppedThrusterCommandedZero(t *testing.T) {
	a, _, sink, _ := newTestAllocator(t, Config{})
	require.NoError(t, a.UpdateLayout([]string{"t1"}))
	assert.Equal(t, []string{"t1"}, a.Faults().Dropped)

	var seen []float64
	a.SetSolveFunc(func(w []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution {
		sol := testSolver().Solve(w, b, bounds, warm)
		seen = append(seen, sol.Thrust[0])
		return sol
	})
	res, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.LessOrEqual(t, math.Abs(seen[0]), 0.005)
	thrust, ok := res.Thrust("t1")
	require.True(t, ok)
	assert.Equal(t, 0.0, thrust)
	assert.Equal(t, []string{"t1"}, res.Dropped)
	require.Len(t, sink.layouts, 1)
	assert.Equal(t, 3, sink.layouts[0].Active)
}

func TestAllocator_UpdateLayout(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	a, err := NewAllocator(coupleLayout(t), Config{}, nil, nil, bus, logger.NopLogger{})
	require.NoError(t, err)
	store := thrusterstatus.NewMemoryStore()
	a.SetStatusStore(store)

	require.NoError(t, a.UpdateLayout([]string{"t2"}))
	require.NoError(t, a.UpdateLayout([]string{"t2"}))
	err = a.UpdateLayout([]string{"t2", "t9"})
	assert.True(t, errors.Is(err, ErrInvalidThrusterID))
	assert.Equal(t, []string{"t2"}, a.Faults().Dropped)

	ev := <-sub
	le, ok := ev.(events.LayoutEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"t2"}, le.Dropped)
	select {
	case extra := <-sub:
		t.Fatalf("unexpected event %#v", extra)
	default:
	}

	dropped := store.List(thrusterstatus.Filter{DroppedOnly: true})
	require.Len(t, dropped, 1)
	assert.Equal(t, "t2", dropped[0].Name)
}

func TestAllocator_Matrix(t *testing.T) {
	a, _, _, _ := newTestAllocator(t, Config{})
	assert.Equal(t, a.Layout().Flatten(), a.Matrix())
	assert.Len(t, a.Matrix(), 24)
}

func TestAllocator_DerateRetry(t *testing.T) {
	a, pub, sink, _ := newTestAllocator(t, Config{})
	var wrenches [][]float64
	a.SetSolveFunc(func(w []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution {
		wrenches = append(wrenches, append([]float64(nil), w...))
		if len(wrenches) < 3 {
			return Solution{Thrust: warm}
		}
		return testSolver().Solve(w, b, bounds, warm)
	})

	res, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	require.Len(t, wrenches, 3)
	assert.InDelta(t, 1, wrenches[0][5], 1e-12)
	assert.InDelta(t, 0.75, wrenches[1][5], 1e-12)
	assert.InDelta(t, 0.5625, wrenches[2][5], 1e-12)
	assert.Equal(t, 3, res.Attempts)
	assert.InDelta(t, 0.5625, res.Scale, 1e-12)
	assert.True(t, res.Derated())

	// Error is measured against the original request.
	assert.InDelta(t, 1-0.5625, res.Error.Torque.Z, 1e-3)
	assert.InDelta(t, 1, res.Requested.Torque.Z, 1e-12)
	assert.Len(t, sink.derates, 2)
	assert.Equal(t, 1, pub.count())
}

func TestAllocator_UnachievableAfterAttempts(t *testing.T) {
	a, pub, sink, _ := newTestAllocator(t, Config{MaxDerateAttempts: 5})
	calls := 0
	a.SetSolveFunc(func(w []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution {
		calls++
		return Solution{Thrust: warm}
	})
	_, err := a.Handle(context.Background(), yawRequest(1))
	assert.True(t, errors.Is(err, ErrUnachievable))
	assert.Equal(t, 5, calls)
	assert.Equal(t, 0, pub.count())
	assert.Equal(t, []string{"unachievable"}, sink.rejects)
	_, ok := a.Last()
	assert.False(t, ok)
}

func TestAllocator_UnachievableAfterBudget(t *testing.T) {
	a, _, _, clock := newTestAllocator(t, Config{DerateBudgetMS: 40})
	clock.step = 10 * time.Millisecond
	calls := 0
	a.SetSolveFunc(func(w []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution {
		calls++
		return Solution{Thrust: warm}
	})
	_, err := a.Handle(context.Background(), yawRequest(1))
	assert.True(t, errors.Is(err, ErrUnachievable))
	assert.Equal(t, 4, calls)
}

func TestAllocator_UnachievableOnCancel(t *testing.T) {
	a, _, _, _ := newTestAllocator(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	a.SetSolveFunc(func(w []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution {
		cancel()
		return Solution{Thrust: warm}
	})
	_, err := a.Handle(ctx, yawRequest(1))
	assert.True(t, errors.Is(err, ErrUnachievable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAllocator_PublishFailureStillAccepted(t *testing.T) {
	a, pub, _, _ := newTestAllocator(t, Config{})
	pub.fails = true
	res, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestAllocator_EventsAndStatus(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	a, err := NewAllocator(coupleLayout(t), Config{}, nil, nil, bus, logger.NopLogger{})
	require.NoError(t, err)
	store := thrusterstatus.NewMemoryStore()
	a.SetStatusStore(store)

	res, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	ev := <-sub
	ae, ok := ev.(events.AllocationEvent)
	require.True(t, ok)
	assert.Equal(t, res.CycleID, ae.Allocation.CycleID)

	for _, st := range store.List(thrusterstatus.Filter{}) {
		assert.Equal(t, res.CycleID, st.LastCommand.CycleID)
		assert.Equal(t, thrusterstatus.StatusCommanded, st.CurrentStatus)
	}
}

func TestAllocator_Run(t *testing.T) {
	a, pub, _, clock := newTestAllocator(t, Config{})
	clock.step = 100 * time.Millisecond
	reqs := make(chan model.WrenchRequest)
	done := make(chan struct{})
	go func() {
		a.Run(context.Background(), reqs)
		close(done)
	}()
	reqs <- yawRequest(1)
	reqs <- yawRequest(math.NaN())
	reqs <- yawRequest(-1)
	close(reqs)
	<-done
	assert.Equal(t, 2, pub.count())
}

func TestAllocator_Metrics(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	a, _, _, clock := newTestAllocator(t, Config{})
	_, err := a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	_, err = a.Handle(context.Background(), yawRequest(1))
	require.NoError(t, err)
	clock.advance(time.Second)
	require.NoError(t, a.UpdateLayout([]string{"t1", "t2"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(allocationCycles.WithLabelValues("allocated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(allocationCycles.WithLabelValues("rate_limited")))
	assert.Equal(t, 2.0, testutil.ToFloat64(droppedThrusters))
	assert.Equal(t, 1, testutil.CollectAndCount(solveLatency))
}
