package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/thrustmapper/core/model"
	"github.com/kilianp07/thrustmapper/core/monitoring"
	coremqtt "github.com/kilianp07/thrustmapper/core/mqtt"
	"github.com/kilianp07/thrustmapper/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// LayoutService is served on the layout and matrix request topics.
type LayoutService interface {
	UpdateLayout(dropped []string) error
	Matrix() []float64
	Thrusters() []string
}

// StatusHandler receives thruster liveness reports.
type StatusHandler func(name string, alive bool, at time.Time)

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// PahoClient implements coremqtt.Publisher and coremqtt.WrenchSource using
// Eclipse Paho. Subscriptions are restored on every reconnect.
type PahoClient struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger

	mu      sync.Mutex
	subs    map[string]subscription
	wrenchC chan model.WrenchRequest

	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the wrench topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		cfg:        cfg,
		logger:     log,
		subs:       make(map[string]subscription),
		wrenchC:    make(chan model.WrenchRequest, 1),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:    time.Duration(cfg.PublishTimeoutMS) * time.Millisecond,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 2
	}
	if pc.backoff <= 0 {
		pc.backoff = 5 * time.Millisecond
	}
	if pc.timeout <= 0 {
		pc.timeout = 100 * time.Millisecond
	}
	pc.subs[cfg.Topics.Wrench] = subscription{qos: cfg.qos("wrench"), handler: pc.onWrench}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		pc.mu.Lock()
		subs := make(map[string]subscription, len(pc.subs))
		for t, s := range pc.subs {
			subs[t] = s
		}
		pc.mu.Unlock()
		for topic, s := range subs {
			if token := c.Subscribe(topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe %s: %v", topic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.mu.Lock()
	pc.cli = c
	pc.mu.Unlock()
	return pc, nil
}

// Wrenches returns the incoming wrench requests. Only the latest unread
// request is kept.
func (p *PahoClient) Wrenches() <-chan model.WrenchRequest { return p.wrenchC }

// ServeLayout answers layout reconfiguration and matrix requests with svc.
func (p *PahoClient) ServeLayout(svc LayoutService) error {
	if err := p.subscribe(p.cfg.Topics.LayoutRequest, p.cfg.qos("layout"), func(_ paho.Client, msg paho.Message) {
		p.handleLayoutRequest(svc, msg.Payload())
	}); err != nil {
		return err
	}
	return p.subscribe(p.cfg.Topics.MatrixRequest, p.cfg.qos("layout"), func(_ paho.Client, msg paho.Message) {
		p.handleMatrixRequest(svc, msg.Payload())
	})
}

// SubscribeStatus forwards thruster status messages to h.
func (p *PahoClient) SubscribeStatus(h StatusHandler) error {
	prefix := strings.TrimSuffix(p.cfg.Topics.StatusPrefix, "/")
	return p.subscribe(prefix+"/+", p.cfg.qos("status"), func(_ paho.Client, msg paho.Message) {
		name := extractName(msg.Topic())
		var st StatusMessage
		if err := json.Unmarshal(msg.Payload(), &st); err != nil || name == "" {
			p.logger.Errorf("invalid status message on %s: %v", msg.Topic(), err)
			return
		}
		h(name, st.Alive, time.Now())
	})
}

func (p *PahoClient) subscribe(topic string, qos byte, h paho.MessageHandler) error {
	p.mu.Lock()
	p.subs[topic] = subscription{qos: qos, handler: h}
	cli := p.cli
	p.mu.Unlock()
	if cli == nil || !cli.IsConnected() {
		return nil
	}
	if token := cli.Subscribe(topic, qos, h); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func extractName(topic string) string {
	parts := strings.Split(topic, "/")
	return parts[len(parts)-1]
}

func (p *PahoClient) onWrench(_ paho.Client, msg paho.Message) {
	var m WrenchMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode wrench: %v", err)
		return
	}
	req := m.Request(time.Now())
	for {
		select {
		case p.wrenchC <- req:
			return
		default:
		}
		select {
		case <-p.wrenchC:
		default:
		}
	}
}

func (p *PahoClient) handleLayoutRequest(svc LayoutService, payload []byte) {
	var req LayoutRequest
	resp := LayoutResponse{OK: true}
	if err := json.Unmarshal(payload, &req); err != nil {
		resp.OK = false
		resp.Error = fmt.Sprintf("decode request: %v", err)
	} else if err := svc.UpdateLayout(req.DroppedThrusters); err != nil {
		resp.OK = false
		resp.Error = err.Error()
	}
	resp.RequestID = req.RequestID
	if err := p.publishJSON(context.Background(), p.cfg.Topics.LayoutResponse, p.cfg.qos("layout"), resp); err != nil {
		p.logger.Errorf("layout response: %v", err)
	}
}

func (p *PahoClient) handleMatrixRequest(svc LayoutService, payload []byte) {
	var req MatrixRequest
	_ = json.Unmarshal(payload, &req)
	names := svc.Thrusters()
	resp := MatrixResponse{
		RequestID: req.RequestID,
		Rows:      model.WrenchDim,
		Cols:      len(names),
		Thrusters: names,
		Matrix:    svc.Matrix(),
	}
	if err := p.publishJSON(context.Background(), p.cfg.Topics.MatrixResponse, p.cfg.qos("layout"), resp); err != nil {
		p.logger.Errorf("matrix response: %v", err)
	}
}

// PublishAllocation sends the thrust commands, then the achieved and error
// wrenches.
func (p *PahoClient) PublishAllocation(ctx context.Context, a model.Allocation) error {
	thrust := ThrustMessage{CycleID: a.CycleID, Timestamp: a.Timestamp.UnixMilli(), Commands: a.Commands}
	err := p.publishJSON(ctx, p.cfg.Topics.Thrust, p.cfg.qos("command"), thrust)
	if err != nil {
		return err
	}
	dq := p.cfg.qos("diagnostic")
	return errors.Join(
		p.publishJSON(ctx, p.cfg.Topics.WrenchActual, dq, newWrenchMessage(a.Achieved, a.Frame, a.Timestamp, a.CycleID)),
		p.publishJSON(ctx, p.cfg.Topics.WrenchError, dq, newWrenchMessage(a.Error, a.Frame, a.Timestamp, a.CycleID)),
	)
}

// PublishWrench sends a wrench request, as the guidance layer would.
func (p *PahoClient) PublishWrench(ctx context.Context, w model.Wrench, frame string) error {
	return p.publishJSON(ctx, p.cfg.Topics.Wrench, p.cfg.qos("wrench"), newWrenchMessage(w, frame, time.Now(), ""))
}

// RequestLayout sends a layout reconfiguration request and returns its id.
func (p *PahoClient) RequestLayout(ctx context.Context, dropped []string) (string, error) {
	id := uuid.NewString()
	return id, p.publishJSON(ctx, p.cfg.Topics.LayoutRequest, p.cfg.qos("layout"), LayoutRequest{RequestID: id, DroppedThrusters: dropped})
}

func (p *PahoClient) publishJSON(ctx context.Context, topic string, qos byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.publish(ctx, topic, qos, payload)
}

// publish retries with exponential backoff. The last error is reported to the
// monitor.
func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	p.mu.Lock()
	cli := p.cli
	p.mu.Unlock()
	if cli == nil {
		return coremqtt.ErrNotConnected
	}
	var publishErr error
	for attempt := 0; ; attempt++ {
		token := cli.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(p.timeout) {
			publishErr = coremqtt.ErrPublishTimeout
		} else {
			publishErr = token.Error()
		}
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish %s attempt %d failed: %v", topic, attempt+1, publishErr)
		if attempt >= p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
			continue
		}
		break
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	p.mu.Lock()
	cli := p.cli
	p.mu.Unlock()
	if cli != nil && cli.IsConnected() {
		cli.Disconnect(250)
	}
}
