// Package session provides the per-invocation recognition session lifecycle,
// the one-shot completion gate and the ordered segment accumulator.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a recognition session.
type State int

const (
	// StateIdle - No engine session exists yet.
	StateIdle State = iota
	// StateConfigured - Engine session created, observers may be registered.
	StateConfigured
	// StateStreaming - Session started, audio is being pushed.
	StateStreaming
	// StateAwaitingCompletion - Input closed, waiting for the terminated event.
	StateAwaitingCompletion
	// StateCompleted - Terminated at end of stream, the transcript is usable.
	StateCompleted
	// StateCanceled - Terminated by an engine error or the caller. No document is written.
	StateCanceled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConfigured:
		return "CONFIGURED"
	case StateStreaming:
		return "STREAMING"
	case StateAwaitingCompletion:
		return "AWAITING_COMPLETION"
	case StateCompleted:
		return "COMPLETED"
	case StateCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (COMPLETED or CANCELED).
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCanceled
}

// ErrInvalidTransition is returned when a transition is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → CONFIGURED → STREAMING → AWAITING_COMPLETION → COMPLETED
//	           │            │                │
//	           └────────────┴────────────────┴──→ CANCELED
//
// Rules:
//   - Forward transitions happen one step at a time, in order.
//   - Cancel is allowed from any non-terminal state after IDLE.
//   - COMPLETED and CANCELED are terminal.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a new session lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Configured transitions IDLE → CONFIGURED.
func (l *Lifecycle) Configured() error {
	return l.advance(StateIdle, StateConfigured)
}

// Streaming transitions CONFIGURED → STREAMING.
func (l *Lifecycle) Streaming() error {
	return l.advance(StateConfigured, StateStreaming)
}

// AwaitingCompletion transitions STREAMING → AWAITING_COMPLETION.
func (l *Lifecycle) AwaitingCompletion() error {
	return l.advance(StateStreaming, StateAwaitingCompletion)
}

// Complete transitions AWAITING_COMPLETION → COMPLETED.
func (l *Lifecycle) Complete() error {
	return l.advance(StateAwaitingCompletion, StateCompleted)
}

// Cancel transitions the session to CANCELED.
// Returns true if the session was canceled, false if it was idle or already terminal.
func (l *Lifecycle) Cancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateIdle || l.state.IsTerminal() {
		return false
	}
	l.state = StateCanceled
	return true
}

func (l *Lifecycle) advance(from, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != from {
		return fmt.Errorf("%w: %v → %v", ErrInvalidTransition, l.state, to)
	}
	l.state = to
	return nil
}
