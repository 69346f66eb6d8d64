package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/thrustmapper/config"
	"github.com/kilianp07/thrustmapper/core/allocation"
	"github.com/kilianp07/thrustmapper/core/allocation/logging"
	coremetrics "github.com/kilianp07/thrustmapper/core/metrics"
	coremon "github.com/kilianp07/thrustmapper/core/monitoring"
	"github.com/kilianp07/thrustmapper/core/thrusterstatus"
	"github.com/kilianp07/thrustmapper/infra/health"
	"github.com/kilianp07/thrustmapper/infra/logger"
	"github.com/kilianp07/thrustmapper/infra/metrics"
	"github.com/kilianp07/thrustmapper/infra/monitoring"
	"github.com/kilianp07/thrustmapper/infra/mqtt"
	"github.com/kilianp07/thrustmapper/infra/tracing"
	"github.com/kilianp07/thrustmapper/internal/eventbus"
)

// eventBuffer covers a few seconds of allocation events for slow consumers
// such as the SQLite log store.
const eventBuffer = 64

// Service wires the allocator to its transport, stores and observers.
type Service struct {
	Allocator *allocation.Allocator

	cfg      *config.Config
	client   *mqtt.PahoClient
	sink     coremetrics.MetricsSink
	bus      *eventbus.Bus
	status   *thrusterstatus.MemoryStore
	logStore logging.LogStore
	health   *health.Monitor
	log      logger.Logger
	shutdown tracing.ShutdownFunc
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	shutdown, err := tracing.InitTracing(context.Background(), cfg.Tracing, logger.New("tracing"))
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	thrusters, err := cfg.Layout.Resolve()
	if err != nil {
		return nil, err
	}
	layout, err := allocation.BuildLayout(thrusters)
	if err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	bus := eventbus.NewBuffered(eventBuffer)
	alloc, err := allocation.NewAllocator(layout, cfg.Allocator, client, sink, bus, logger.New("allocator"))
	if err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("allocator: %w", err)
	}
	status := thrusterstatus.NewMemoryStore()
	alloc.SetStatusStore(status)

	svc := &Service{
		Allocator: alloc,
		cfg:       cfg,
		client:    client,
		sink:      sink,
		bus:       bus,
		status:    status,
		log:       logg,
		shutdown:  shutdown,
	}
	if cfg.Logging.Enabled {
		store, err := logging.Open(cfg.Logging.Options())
		if err != nil {
			client.Disconnect()
			return nil, fmt.Errorf("allocation log: %w", err)
		}
		svc.logStore = store
	}
	if cfg.Health.Enabled {
		svc.health = health.NewMonitor(cfg.Health, alloc, status, bus, logger.New("health"))
	}
	if err := client.ServeLayout(alloc); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("layout service: %w", err)
	}
	logg.Infof("allocator ready with %d thrusters", layout.Len())
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	recorded := logging.StartRecorder(ctx, s.bus, s.logStore, logger.New("allocation_log"))

	if s.health != nil {
		go func() {
			defer coremon.Recover()
			if err := s.health.Run(ctx, s.client); err != nil {
				s.log.Errorf("health monitor: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		h := NewHTTPHandler(s.Allocator, s.status, s.logStore, s.cfg.API.Token)
		go func() {
			if err := metrics.StartServer(ctx, s.cfg.API.Address, h, s.log); err != nil {
				s.log.Errorf("http server: %v", err)
			}
		}()
	}

	func() {
		defer coremon.Recover()
		s.Allocator.Run(ctx, s.client.Wrenches())
	}()
	<-recorded
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.client.Disconnect()
	s.bus.Close()
	if n := s.bus.Dropped(); n > 0 {
		s.log.Warnf("event bus dropped %d deliveries to slow consumers", n)
	}
	var errs []error
	if s.logStore != nil {
		errs = append(errs, s.logStore.Close())
	}
	tracing.ShutdownWithTimeout(context.Background(), s.shutdown, s.log)
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
