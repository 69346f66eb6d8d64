package thrusterstatus

import (
	"sort"
	"sync"
	"time"
)

// LastCommand mirrors the most recent thrust command sent to a thruster.
type LastCommand struct {
	CycleID   string    `json:"cycle_id"`
	Thrust    float64   `json:"thrust"`
	Timestamp time.Time `json:"timestamp"`
}

// Status captures the current known state of a thruster.
type Status struct {
	Name          string      `json:"name"`
	MotorID       int         `json:"motor_id"`
	CurrentStatus string      `json:"current_status"`
	Dropped       bool        `json:"dropped"`
	Alive         bool        `json:"alive"`
	LastSeen      time.Time   `json:"last_seen,omitempty"`
	LastCommand   LastCommand `json:"last_command"`
}

const (
	StatusIdle      = "idle"
	StatusCommanded = "commanded"
	StatusDropped   = "dropped"
)

type Filter struct {
	Status      string
	DroppedOnly bool
}

type Store interface {
	Set(Status)
	List(Filter) []Status
	RecordCommand(name string, cmd LastCommand)
	SetDropped(name string, dropped bool)
	MarkSeen(name string, alive bool, at time.Time)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.Name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) get(name string) Status {
	st := s.data[name]
	if st.Name == "" {
		st.Name = name
		st.CurrentStatus = StatusIdle
		st.Alive = true
	}
	return st
}

// RecordCommand stores the command. Dropped thrusters keep their status.
func (s *MemoryStore) RecordCommand(name string, cmd LastCommand) {
	s.mu.Lock()
	st := s.get(name)
	st.LastCommand = cmd
	if !st.Dropped {
		st.CurrentStatus = StatusCommanded
		if cmd.Thrust == 0 {
			st.CurrentStatus = StatusIdle
		}
	}
	s.data[name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) SetDropped(name string, dropped bool) {
	s.mu.Lock()
	st := s.get(name)
	st.Dropped = dropped
	if dropped {
		st.CurrentStatus = StatusDropped
	} else if st.CurrentStatus == StatusDropped {
		st.CurrentStatus = StatusIdle
	}
	s.data[name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) MarkSeen(name string, alive bool, at time.Time) {
	s.mu.Lock()
	st := s.get(name)
	st.Alive = alive
	st.LastSeen = at
	s.data[name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.Status != "" && st.CurrentStatus != f.Status {
			continue
		}
		if f.DroppedOnly && !st.Dropped {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].MotorID != res[j].MotorID {
			return res[i].MotorID < res[j].MotorID
		}
		return res[i].Name < res[j].Name
	})
	return res
}
