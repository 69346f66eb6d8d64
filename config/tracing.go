package config

import "fmt"

// TracingConfig governs how allocation spans are exported.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"service_name"`
	// Exporter is "stdout" or "file".
	Exporter    string  `json:"exporter"`
	Path        string  `json:"path"`
	SampleRatio float64 `json:"sample_ratio"`
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "thrustmapper"
	}
	if c.Exporter == "" {
		c.Exporter = "stdout"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1
	}
}

func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case "stdout":
	case "file":
		if c.Path == "" {
			return fmt.Errorf("tracing: path is required for the file exporter")
		}
	default:
		return fmt.Errorf("tracing: unsupported exporter %s", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample_ratio must be within [0,1]")
	}
	return nil
}
