package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyedYAML = `thrusters:
  FRH:
    motor_id: 1
    position: [0.2678, -0.2795, 0.0]
    direction: [-0.866, -0.5, 0.0]
    thrust_bounds: [-90.0, 90.0]
  FLH:
    motor_id: 0
    position: [0.2678, 0.2795, 0.0]
    direction: [-0.866, 0.5, 0.0]
    thrust_bounds: [-90.0, 90.0]
  FLV:
    motor_id: 1
    position: [0.1583, 0.169, 0.0142]
    direction: [0, 0, 1]
    thrust_bounds: [-90, 90]
`

const listTOML = `[[thrusters]]
name = "a"
motor_id = 3
position = [1.0, 0.0, 0.0]
direction = [0.0, 1.0, 0.0]
thrust_bounds = [-5.0, 5.0]

[[thrusters]]
name = "b"
motor_id = 1
position = [-1.0, 0.0, 0.0]
direction = [0.0, -1.0, 0.0]
thrust_bounds = [-2.5, 5.0]
`

const listJSON = `{"thrusters":[
  {"name":"x","motor_id":0,"position":[0,0,1],"direction":[1,0,0],"thrust_bounds":[-1,2]}
]}`

func TestLoadLayoutFileKeyedYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "layout.yaml", keyedYAML)
	ths, err := LoadLayoutFile(path)
	require.NoError(t, err)
	require.Len(t, ths, 3)
	assert.Equal(t, "FLH", ths[0].Name)
	assert.Equal(t, "FLV", ths[1].Name, "ties on motor_id are broken by name")
	assert.Equal(t, "FRH", ths[2].Name)
	assert.Equal(t, 0.2795, ths[0].Position.Y)
	assert.Equal(t, -0.866, ths[0].Direction.X)
	assert.Equal(t, -90.0, ths[0].MinThrust)
	assert.Equal(t, 90.0, ths[1].MaxThrust)
}

func TestLoadLayoutFileListTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "layout.toml", listTOML)
	ths, err := LoadLayoutFile(path)
	require.NoError(t, err)
	require.Len(t, ths, 2)
	assert.Equal(t, "a", ths[0].Name, "list order is kept")
	assert.Equal(t, 3, ths[0].MotorID)
	assert.Equal(t, -2.5, ths[1].MinThrust)
	assert.Equal(t, -1.0, ths[1].Direction.Y)
}

func TestLoadLayoutFileListJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "layout.json", listJSON)
	ths, err := LoadLayoutFile(path)
	require.NoError(t, err)
	require.Len(t, ths, 1)
	assert.Equal(t, 1.0, ths[0].Position.Z)
	assert.Equal(t, 2.0, ths[0].MaxThrust)
}

func TestLoadLayoutFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadLayoutFile(writeFile(t, dir, "layout.txt", ""))
	assert.Error(t, err)
	_, err = LoadLayoutFile(writeFile(t, dir, "empty.yaml", "other: 1\n"))
	assert.ErrorContains(t, err, "no thrusters")
	_, err = LoadLayoutFile(writeFile(t, dir, "scalar.yaml", "thrusters: 3\n"))
	assert.Error(t, err)
	_, err = LoadLayoutFile(writeFile(t, dir, "long.yaml", "thrusters: [{name: a, position: [1, 2, 3, 4]}]\n"))
	assert.Error(t, err)
	_, err = LoadLayoutFile(writeFile(t, dir, "nobounds.yaml", "thrusters: {FLV: {position: [0, 0, 0], direction: [0, 0, 1]}}\n"))
	assert.ErrorContains(t, err, "thruster FLV: missing required thrust_bounds")
	_, err = LoadLayoutFile(writeFile(t, dir, "noname.json", `{"thrusters":[{"position":[0,0,0],"direction":[0,0,1],"thrust_bounds":[-1,1]}]}`))
	assert.ErrorContains(t, err, "thruster 0: missing required name")
	_, err = LoadLayoutFile(dir + "/missing.yaml")
	assert.Error(t, err)
}

func TestLayoutResolveInline(t *testing.T) {
	c := LayoutConfig{Thrusters: []ThrusterConfig{{Name: "a", Direction: [3]float64{1, 0, 0}, ThrustBounds: [2]float64{-1, 1}}}}
	require.NoError(t, c.Validate())
	ths, err := c.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "a", ths[0].Name)
	assert.Equal(t, 1.0, ths[0].Direction.X)
	assert.Error(t, LayoutConfig{}.Validate())
}
