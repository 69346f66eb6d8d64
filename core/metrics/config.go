package metrics

import (
	"fmt"

	"github.com/kilianp07/thrustmapper/core/factory"
)

// Config lists the sinks fed by the allocator. An empty list disables
// metrics recording.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate checks that every sink names a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics: sink %d has no type", i)
		}
	}
	return nil
}
