package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/thrustmapper/core/factory"
	"github.com/kilianp07/thrustmapper/core/model"
)

// ThrusterConfig describes one thruster. Position is in metres and Direction
// must be a unit vector; ThrustBounds holds [min, max] in Newtons.
type ThrusterConfig struct {
	Name         string     `json:"name"`
	MotorID      int        `json:"motor_id"`
	Position     [3]float64 `json:"position"`
	Direction    [3]float64 `json:"direction"`
	ThrustBounds [2]float64 `json:"thrust_bounds"`
}

// Thruster converts the entry to the model type.
func (t ThrusterConfig) Thruster() model.Thruster {
	return model.Thruster{
		Name:      t.Name,
		MotorID:   t.MotorID,
		Position:  r3.Vec{X: t.Position[0], Y: t.Position[1], Z: t.Position[2]},
		Direction: r3.Vec{X: t.Direction[0], Y: t.Direction[1], Z: t.Direction[2]},
		MinThrust: t.ThrustBounds[0],
		MaxThrust: t.ThrustBounds[1],
	}
}

// LayoutConfig lists the thrusters inline or points to a layout file. Inline
// thrusters take precedence.
type LayoutConfig struct {
	File      string           `json:"file"`
	Thrusters []ThrusterConfig `json:"thrusters"`
}

// Validate checks that a layout source is present.
func (c LayoutConfig) Validate() error {
	if c.File == "" && len(c.Thrusters) == 0 {
		return fmt.Errorf("layout: either file or thrusters is required")
	}
	return nil
}

// Resolve returns the thrusters in column order.
func (c LayoutConfig) Resolve() ([]model.Thruster, error) {
	if len(c.Thrusters) > 0 {
		return toModel(c.Thrusters), nil
	}
	return LoadLayoutFile(c.File)
}

// LoadLayoutFile reads a YAML, JSON or TOML layout file. The thrusters key
// holds either a list of entries or a map keyed by thruster name; map entries
// are ordered by motor_id, then name.
func LoadLayoutFile(path string) ([]model.Thruster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		return nil, fmt.Errorf("unsupported layout format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	entries, err := decodeThrusters(raw["thrusters"])
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return toModel(entries), nil
}

// requiredKeys must be present in every layout entry; name is implied by the
// key in the map form.
var requiredKeys = []string{"position", "direction", "thrust_bounds"}

func decodeThrusters(v any) ([]ThrusterConfig, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("no thrusters defined")
	case []any:
		out := make([]ThrusterConfig, 0, len(t))
		for i, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("thruster %d: expected a table", i)
			}
			var tc ThrusterConfig
			if err := factory.DecodeRequired(m, &tc, append([]string{"name"}, requiredKeys...)...); err != nil {
				return nil, fmt.Errorf("thruster %d: %w", i, err)
			}
			out = append(out, tc)
		}
		return out, nil
	case []map[string]any:
		items := make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
		return decodeThrusters(items)
	case map[string]any:
		out := make([]ThrusterConfig, 0, len(t))
		for name, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("thruster %s: expected a table", name)
			}
			var tc ThrusterConfig
			if err := factory.DecodeRequired(m, &tc, requiredKeys...); err != nil {
				return nil, fmt.Errorf("thruster %s: %w", name, err)
			}
			tc.Name = name
			out = append(out, tc)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].MotorID != out[j].MotorID {
				return out[i].MotorID < out[j].MotorID
			}
			return out[i].Name < out[j].Name
		})
		return out, nil
	default:
		return nil, fmt.Errorf("thrusters must be a list or a map, got %T", v)
	}
}

func toModel(entries []ThrusterConfig) []model.Thruster {
	out := make([]model.Thruster, len(entries))
	for i, e := range entries {
		out[i] = e.Thruster()
	}
	return out
}
