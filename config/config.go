package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/thrustmapper/core/allocation"
	"github.com/kilianp07/thrustmapper/core/metrics"
	"github.com/kilianp07/thrustmapper/infra/mqtt"
)

// Config is the service configuration.
type Config struct {
	MQTT      mqtt.Config       `json:"mqtt"`
	Allocator allocation.Config `json:"allocator"`
	Layout    LayoutConfig      `json:"layout"`
	Metrics   metrics.Config    `json:"metrics"`
	Logging   LoggingConfig     `json:"logging"`
	Tracing   TracingConfig     `json:"tracing"`
	API       APIConfig         `json:"api"`
	Health    HealthConfig      `json:"health"`
	Sentry    SentryConfig      `json:"sentry"`
}

// Load reads a YAML or JSON configuration file, applies K_ environment
// overrides ("__" separates levels) and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if cfg.Layout.File != "" && !filepath.IsAbs(cfg.Layout.File) {
		cfg.Layout.File = filepath.Join(filepath.Dir(path), cfg.Layout.File)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Allocator.SetDefaults()
	c.Logging.SetDefaults()
	c.Tracing.SetDefaults()
	c.API.SetDefaults()
	c.Health.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Allocator.Validate(); err != nil {
		return fmt.Errorf("allocator: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	if err := c.Health.Validate(); err != nil {
		return err
	}
	return c.Sentry.Validate()
}
