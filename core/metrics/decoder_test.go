package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	metrics "github.com/kilianp07/thrustmapper/core/metrics"
)

func TestMetricsConfigDecodeYAML(t *testing.T) {
	data := `sinks:
  - type: nop
  - type: influx
    conf:
      url: http://localhost:8086
      bucket: allocation
`
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	require.Len(t, cfg.Sinks, 2)
	assert.Equal(t, "influx", cfg.Sinks[1].Type)
	assert.Equal(t, "allocation", cfg.Sinks[1].Conf["bucket"])
	assert.NoError(t, cfg.Validate())
}

func TestMetricsConfigDecodeJSON(t *testing.T) {
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"nop"},{"type":"nop"}]}`), &cfg))
	s, err := metrics.NewMetricsSink(cfg)
	require.NoError(t, err)
	assert.IsType(t, &metrics.MultiSink{}, s)
}
