package ingest

import (
	"errors"
	"fmt"
)

// State is the phase of one run.
type State int

const (
	StateStart State = iota
	StateReading
	StateLoading
	StateVerifying
	StateDone
	StateFailed
)

var stateNames = [...]string{"START", "READING", "LOADING", "VERIFYING", "DONE", "FAILED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// ErrInvalidTransition is wrapped by Machine.To for a move the run graph does
// not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// allowed lists the legal successors of every non-terminal state. FAILED is
// reachable from all of them.
var allowed = map[State][]State{
	StateStart:     {StateReading},
	StateReading:   {StateLoading, StateVerifying},
	StateLoading:   {StateLoading, StateVerifying},
	StateVerifying: {StateDone},
}

// Machine tracks the current State of a run.
type Machine struct {
	cur     State
	onEnter func(from, to State)
}

// NewMachine returns a machine in StateStart. onEnter, when set, is called
// after every successful transition.
func NewMachine(onEnter func(from, to State)) *Machine {
	return &Machine{cur: StateStart, onEnter: onEnter}
}

// State returns the current state.
func (m *Machine) State() State { return m.cur }

// To moves the machine to next.
func (m *Machine) To(next State) error {
	from := m.cur
	if !m.can(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	m.cur = next
	if m.onEnter != nil {
		m.onEnter(from, next)
	}
	return nil
}

func (m *Machine) can(next State) bool {
	if m.cur.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, s := range allowed[m.cur] {
		if s == next {
			return true
		}
	}
	return false
}
