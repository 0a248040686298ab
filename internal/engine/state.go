package engine

import (
	"sync"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

// State is a render job's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateRendering  State = "rendering"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateCancelled || to == StateFailed {
		return true
	}
	switch from {
	case StateIdle:
		return to == StateLoading
	case StateLoading:
		return to == StateRendering
	case StateRendering:
		return to == StateFinalizing
	case StateFinalizing:
		return to == StateCompleted
	default:
		return false
	}
}

// Machine guards a job's state. The zero value starts Idle.
type Machine struct {
	mu    sync.RWMutex
	state State
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == "" {
		return StateIdle
	}
	return m.state
}

// Transition moves from the expected state to the next one. A mismatch or a
// disallowed edge is a programming error.
func (m *Machine) Transition(from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.state
	if cur == "" {
		cur = StateIdle
	}
	if cur != from {
		return errors.Newf(errors.CodeInternal, "invalid transition: expected %s, got %s", from, cur)
	}
	if !isAllowedTransition(from, to) {
		return errors.Newf(errors.CodeInternal, "disallowed transition: %s -> %s", from, to)
	}
	m.state = to
	return nil
}

// End moves any non-terminal state to a terminal one.
func (m *Machine) End(to State) error {
	return m.Transition(m.State(), to)
}
