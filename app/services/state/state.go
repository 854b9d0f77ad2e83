package state

import (
	"fmt"
	"sync"

	"github.com/Maizu/RLAccountMigrator/app/utils"
)

type State string

const (
	Idle           State = "idle"
	Launching      State = "launching"
	WaitingForSave State = "waiting_for_save"
	Terminating    State = "terminating"
	Succeeded      State = "succeeded"
	Failed         State = "failed"
	TimedOut       State = "timed_out"
)

var transitions = map[State][]State{
	// guard failures and the no-launch migrate finish straight from idle
	Idle:           {Launching, Failed, Succeeded},
	Launching:      {WaitingForSave, Failed},
	WaitingForSave: {Terminating},
	Terminating:    {Succeeded, Failed, TimedOut},
	Succeeded:      {Idle},
	Failed:         {Idle},
	TimedOut:       {Idle},
}

func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == TimedOut
}

func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

type Observer func(from, to State)

// Machine tracks the coordinator's progress through one operation.
type Machine struct {
	mu        sync.Mutex
	current   State
	observers []Observer
}

func NewMachine() *Machine {
	return &Machine{current: Idle}
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Observe registers fn to be called after every successful transition.
func (m *Machine) Observe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	m.current = to
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	utils.DebugLogger.Printf("State %s -> %s\r\n", from, to)

	for _, fn := range observers {
		fn(from, to)
	}
	return nil
}

// Reset returns a finished machine to Idle. It is a no-op when already idle.
func (m *Machine) Reset() error {
	if m.Current() == Idle {
		return nil
	}
	return m.Transition(Idle)
}
