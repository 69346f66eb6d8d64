package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/thrustmapper/core/factory"
	coremetrics "github.com/kilianp07/thrustmapper/core/metrics"
)

// influxConf is the conf block of an "influx" sink. Unless Strict is set an
// unreachable server degrades to a NopSink so the allocator can start.
type influxConf struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	Strict bool   `json:"strict"`
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxFromConf)
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c influxConf
	if err := factory.DecodeRequired(conf, &c, "url", "bucket"); err != nil {
		return nil, err
	}
	if c.Strict {
		return NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket), nil
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}
