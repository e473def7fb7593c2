// Package matrixstate holds the live routing/naming state of the matrix
// unit and notifies subscribers on every change.
package matrixstate

import (
	"fmt"
	"sync"

	"github.com/renholt/crossbar/internal/cec"
)

// Store is the in-memory state store. Every mutation takes a snapshot under
// the same lock and delivers it to subscribers, so a notification always
// carries the state it was triggered by.
type Store struct {
	mu          sync.RWMutex
	inputs      int
	outputs     int
	routing     map[int]int
	outState    map[int]cec.OutputState
	inState     map[int]cec.InputState
	inputNames  map[int]string
	outputNames map[int]string
	subs        []func(cec.Snapshot)
}

// New creates a store for a matrix with the given dimensions.
func New(inputs, outputs int) *Store {
	return &Store{
		inputs:      inputs,
		outputs:     outputs,
		routing:     make(map[int]int),
		outState:    make(map[int]cec.OutputState),
		inState:     make(map[int]cec.InputState),
		inputNames:  make(map[int]string),
		outputNames: make(map[int]string),
	}
}

// Snapshot returns a copy of the current routing state.
func (s *Store) Snapshot() cec.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() cec.Snapshot {
	snap := cec.Snapshot{
		Inputs:   s.inputs,
		Outputs:  s.outputs,
		Routing:  make(map[int]int, len(s.routing)),
		OutState: make(map[int]cec.OutputState, len(s.outState)),
		InState:  make(map[int]cec.InputState, len(s.inState)),
	}
	for k, v := range s.routing {
		snap.Routing[k] = v
	}
	for k, v := range s.outState {
		snap.OutState[k] = v
	}
	for k, v := range s.inState {
		snap.InState[k] = v
	}
	return snap
}

// InputName returns the configured name for an input, or a positional
// default when none is set.
func (s *Store) InputName(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.inputNames[n]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Input %d", n)
}

// OutputName returns the configured name for an output.
func (s *Store) OutputName(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.outputNames[n]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Output %d", n)
}

// Subscribe registers a change listener. Listeners are invoked synchronously
// with the snapshot taken at mutation time.
func (s *Store) Subscribe(fn func(cec.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// ApplyRouting replaces routing entries for the given outputs. Entries with
// out-of-range ports are rejected as a whole so partial updates never land.
func (s *Store) ApplyRouting(routing map[int]int) error {
	s.mu.Lock()
	for out, in := range routing {
		if out < 1 || out > s.outputs {
			s.mu.Unlock()
			return fmt.Errorf("matrixstate: output %d out of range", out)
		}
		if in < 1 || in > s.inputs {
			s.mu.Unlock()
			return fmt.Errorf("matrixstate: input %d out of range", in)
		}
	}
	for out, in := range routing {
		s.routing[out] = in
	}
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// ApplyOutputs updates per-output metadata.
func (s *Store) ApplyOutputs(states map[int]cec.OutputState) error {
	s.mu.Lock()
	for out := range states {
		if out < 1 || out > s.outputs {
			s.mu.Unlock()
			return fmt.Errorf("matrixstate: output %d out of range", out)
		}
	}
	for out, st := range states {
		s.outState[out] = st
	}
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// ApplyInputs updates per-input metadata.
func (s *Store) ApplyInputs(states map[int]cec.InputState) error {
	s.mu.Lock()
	for in := range states {
		if in < 1 || in > s.inputs {
			s.mu.Unlock()
			return fmt.Errorf("matrixstate: input %d out of range", in)
		}
	}
	for in, st := range states {
		s.inState[in] = st
	}
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// SetNames replaces the port name tables. Renames notify subscribers so
// cached display names get refreshed, even though routing did not change.
func (s *Store) SetNames(inputs, outputs map[int]string) {
	s.mu.Lock()
	s.inputNames = make(map[int]string, len(inputs))
	for k, v := range inputs {
		s.inputNames[k] = v
	}
	s.outputNames = make(map[int]string, len(outputs))
	for k, v := range outputs {
		s.outputNames[k] = v
	}
	snap, subs := s.snapshotLocked(), s.subsLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

func (s *Store) subsLocked() []func(cec.Snapshot) {
	subs := make([]func(cec.Snapshot), len(s.subs))
	copy(subs, s.subs)
	return subs
}

func notify(subs []func(cec.Snapshot), snap cec.Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
