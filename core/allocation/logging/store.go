package logging

import (
	"context"
	"time"

	"github.com/kilianp07/thrustmapper/core/model"
)

// LogRecord captures one accepted allocation cycle.
type LogRecord struct {
	Timestamp time.Time             `json:"timestamp"`
	CycleID   string                `json:"cycle_id"`
	Frame     string                `json:"frame"`
	Requested model.Wrench          `json:"requested"`
	Achieved  model.Wrench          `json:"achieved"`
	Error     model.Wrench          `json:"error"`
	ErrorNorm float64               `json:"error_norm"`
	Commands  []model.ThrustCommand `json:"commands"`
	Scale     float64               `json:"scale"`
	Attempts  int                   `json:"attempts"`
	Dropped   []string              `json:"dropped,omitempty"`
	SolveTime time.Duration         `json:"solve_time_ns"`
}

// FromAllocation converts an allocation into its persisted form.
func FromAllocation(a model.Allocation, solve time.Duration) LogRecord {
	return LogRecord{
		Timestamp: a.Timestamp,
		CycleID:   a.CycleID,
		Frame:     a.Frame,
		Requested: a.Requested,
		Achieved:  a.Achieved,
		Error:     a.Error,
		ErrorNorm: a.Error.Norm(),
		Commands:  append([]model.ThrustCommand(nil), a.Commands...),
		Scale:     a.Scale,
		Attempts:  a.Attempts,
		Dropped:   append([]string(nil), a.Dropped...),
		SolveTime: solve,
	}
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start time.Time
	End   time.Time
	// Thruster keeps records in which the named thruster received a non-zero command.
	Thruster    string
	DeratedOnly bool
	// Limit keeps the most recent records when positive.
	Limit int
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

func (q LogQuery) match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.DeratedOnly && r.Scale >= 1 {
		return false
	}
	if q.Thruster != "" {
		for _, c := range r.Commands {
			if c.Name == q.Thruster && c.Thrust != 0 {
				return true
			}
		}
		return false
	}
	return true
}

func (q LogQuery) limit(res []LogRecord) []LogRecord {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}
