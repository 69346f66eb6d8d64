package mqtt

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/model"
)

// WrenchMessage is the JSON form of a stamped wrench, used both for incoming
// requests and the achieved/error diagnostics.
type WrenchMessage struct {
	Force  [3]float64 `json:"force"`
	Torque [3]float64 `json:"torque"`
	Frame  string     `json:"frame,omitempty"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64  `json:"timestamp,omitempty"`
	CycleID   string `json:"cycle_id,omitempty"`
}

func newWrenchMessage(w model.Wrench, frame string, at time.Time, cycleID string) WrenchMessage {
	return WrenchMessage{
		Force:     [3]float64{w.Force.X, w.Force.Y, w.Force.Z},
		Torque:    [3]float64{w.Torque.X, w.Torque.Y, w.Torque.Z},
		Frame:     frame,
		Timestamp: at.UnixMilli(),
		CycleID:   cycleID,
	}
}

// Request converts the message into a wrench request. A missing timestamp is
// replaced by now.
func (m WrenchMessage) Request(now time.Time) model.WrenchRequest {
	ts := now
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp)
	}
	return model.WrenchRequest{
		Wrench: model.Wrench{
			Force:  r3.Vec{X: m.Force[0], Y: m.Force[1], Z: m.Force[2]},
			Torque: r3.Vec{X: m.Torque[0], Y: m.Torque[1], Z: m.Torque[2]},
		},
		Frame:     m.Frame,
		Timestamp: ts,
	}
}

// ThrustMessage carries the commands of one cycle, one entry per thruster in
// layout order.
type ThrustMessage struct {
	CycleID   string                `json:"cycle_id"`
	Timestamp int64                 `json:"timestamp"`
	Commands  []model.ThrustCommand `json:"commands"`
}

// LayoutRequest asks for a new set of dropped thrusters.
type LayoutRequest struct {
	RequestID        string   `json:"request_id"`
	DroppedThrusters []string `json:"dropped_thrusters"`
}

// LayoutResponse acknowledges a LayoutRequest.
type LayoutResponse struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// MatrixRequest asks for the allocation matrix.
type MatrixRequest struct {
	RequestID string `json:"request_id"`
}

// MatrixResponse carries the allocation matrix in row-major order.
type MatrixResponse struct {
	RequestID string    `json:"request_id"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Thrusters []string  `json:"thrusters"`
	Matrix    []float64 `json:"matrix"`
}

// StatusMessage is published by a thruster driver on <status_prefix>/<name>.
type StatusMessage struct {
	Alive bool `json:"alive"`
}
