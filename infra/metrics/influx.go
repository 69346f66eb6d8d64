package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/kilianp07/thrustmapper/infra/logger"
)

// InfluxSink writes allocation cycles to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAllocation writes one summary point for the cycle and one point per
// thruster command.
func (s *InfluxSink) RecordAllocation(res coremetrics.AllocationResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a := res.Allocation
	component := res.Component
	if component == "" {
		component = "allocator"
	}
	points := make([]*write.Point, 0, len(a.Commands)+1)
	points = append(points, write.NewPointWithMeasurement("allocation_cycle").
		AddTag("cycle_id", a.CycleID).
		AddTag("derated", boolLabel(a.Derated())).
		AddTag("component", component).
		AddField("scale", round3(a.Scale)).
		AddField("attempts", a.Attempts).
		AddField("error_norm", round3(a.Error.Norm())).
		AddField("solve_ms", round3(res.SolveTime.Seconds()*1000)).
		SetTime(a.Timestamp))
	for _, c := range a.Commands {
		points = append(points, write.NewPointWithMeasurement("thruster_command").
			AddTag("thruster", c.Name).
			AddTag("cycle_id", a.CycleID).
			AddField("thrust_n", round3(c.Thrust)).
			SetTime(a.Timestamp))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordDerate writes a de-rated retry.
func (s *InfluxSink) RecordDerate(ev coremetrics.DerateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("allocation_derate").
		AddTag("cycle_id", ev.CycleID).
		AddField("attempt", ev.Attempt).
		AddField("scale", round3(ev.Scale)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLayoutChange writes the dropped thruster set.
func (s *InfluxSink) RecordLayoutChange(ev coremetrics.LayoutChangeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("layout_change").
		AddField("active", ev.Active).
		AddField("dropped", strings.Join(ev.Dropped, ",")).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordThrusterStatus writes a health transition.
func (s *InfluxSink) RecordThrusterStatus(ev coremetrics.ThrusterStatusEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("thruster_status").
		AddTag("thruster", ev.Name).
		AddField("alive", ev.Alive)
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
