// state.go tracks per-bot connection state for the supervisor.
//
// Each hosted bot has a ConnState (connecting, connected, reconnecting,
// disconnected, failed) updated by the lifecycle loop. Transitions are
// recorded in a per-bot ring buffer (50 entries) for debugging. This is
// in-memory observability only; the durable status lives in the tenant
// registry.

package supervisor

import (
	"sync"
	"time"
)

// ConnState is the in-memory connection state of one bot.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateTransitionBufferSize is the maximum number of transitions retained
// per bot.
const stateTransitionBufferSize = 50

// StateTransition records a single state change.
type StateTransition struct {
	From      ConnState `json:"from"`
	To        ConnState `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// stateEntry tracks the current state and transition history for one bot.
type stateEntry struct {
	current     ConnState
	transitions [stateTransitionBufferSize]StateTransition
	head        int // next write position
	count       int // total entries written (capped at buffer size for reads)
}

func (e *stateEntry) record(from, to ConnState, reason string) {
	e.transitions[e.head] = StateTransition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	e.head = (e.head + 1) % stateTransitionBufferSize
	if e.count < stateTransitionBufferSize {
		e.count++
	}
}

// history returns the transitions in chronological order.
func (e *stateEntry) history() []StateTransition {
	if e.count == 0 {
		return nil
	}

	result := make([]StateTransition, e.count)
	if e.count < stateTransitionBufferSize {
		copy(result, e.transitions[:e.count])
	} else {
		// Buffer is full — head is the oldest entry.
		n := copy(result, e.transitions[e.head:])
		copy(result[n:], e.transitions[:e.head])
	}
	return result
}

// stateTracker manages per-bot connection state and transition history.
type stateTracker struct {
	mu     sync.RWMutex
	states map[string]*stateEntry
}

func newStateTracker() *stateTracker {
	return &stateTracker{
		states: make(map[string]*stateEntry),
	}
}

// setState updates a bot's state and records the transition.
// Unchanged state is a no-op.
func (st *stateTracker) setState(botName string, state ConnState, reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry, ok := st.states[botName]
	if !ok {
		entry = &stateEntry{current: StateDisconnected}
		st.states[botName] = entry
	}
	if entry.current == state {
		return
	}
	from := entry.current
	entry.current = state
	entry.record(from, state, reason)
}

// getState returns StateDisconnected for untracked bots.
func (st *stateTracker) getState(botName string) ConnState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.states[botName]
	if !ok {
		return StateDisconnected
	}
	return entry.current
}

func (st *stateTracker) getTransitions(botName string) []StateTransition {
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.states[botName]
	if !ok {
		return nil
	}
	return entry.history()
}

func (st *stateTracker) remove(botName string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.states, botName)
}
