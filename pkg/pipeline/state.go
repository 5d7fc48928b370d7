package pipeline

import (
	"sync"
	"time"
)

// transitionHistorySize is the rolling window spec §4.2 requires ("a
// bounded rolling history (≥10 transitions) for debugging").
const transitionHistorySize = 32

// adjacency is the fixed map of valid state transitions (spec §4.2).
var adjacency = map[State]map[State]bool{
	StateIdle:       {StateStarting: true},
	StateStarting:   {StateListening: true, StateError: true},
	StateListening:  {StateProcessing: true, StatePaused: true, StateStopping: true, StateError: true},
	StateProcessing: {StateListening: true, StateStopping: true, StateError: true},
	StatePaused:     {StateListening: true, StateStopping: true, StateError: true},
	StateStopping:   {StateIdle: true, StateError: true},
	StateError:      {StateIdle: true},
}

// Transition records one state change for the debug history.
type Transition struct {
	From          State
	To            State
	CorrelationID string
	Reason        string
	At            time.Time
}

// PipelineStateManager is the C2 finite state machine.
type PipelineStateManager struct {
	mu            sync.Mutex
	state         State
	correlationID string
	startTimeMs   int64
	lastActivity  time.Time
	history       []Transition
	pausedFrom    State
}

// NewPipelineStateManager starts in StateIdle.
func NewPipelineStateManager() *PipelineStateManager {
	return &PipelineStateManager{state: StateIdle}
}

// GetState returns the current state.
func (m *PipelineStateManager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CorrelationID returns the active correlation (empty outside a run).
func (m *PipelineStateManager) CorrelationID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.correlationID
}

// StartTimeMs returns the timestamp stamped when entering StateStarting.
func (m *PipelineStateManager) StartTimeMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startTimeMs
}

// SetState validates the transition against the fixed adjacency map. An
// invalid transition fails with ErrInvalidStateTransition and does not
// mutate state. correlation is only applied (a) on entry to StateStarting
// (fresh run) — on every other transition the existing correlation is
// preserved unless explicitly cleared by returning to StateIdle.
func (m *PipelineStateManager) SetState(newState State, correlation string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !adjacency[m.state][newState] {
		return ErrInvalidStateTransition
	}

	from := m.state
	m.state = newState
	now := time.Now()

	switch newState {
	case StateStarting:
		m.correlationID = correlation
		m.startTimeMs = now.UnixMilli()
	case StateIdle:
		m.correlationID = ""
		m.startTimeMs = 0
	}

	m.lastActivity = now
	m.history = append(m.history, Transition{From: from, To: newState, CorrelationID: m.correlationID, Reason: reason, At: now})
	if len(m.history) > transitionHistorySize {
		m.history = m.history[len(m.history)-transitionHistorySize:]
	}
	return nil
}

// Pause transitions listening -> paused, remembering the prior state so
// Resume can return to it.
func (m *PipelineStateManager) Pause(reason string) error {
	m.mu.Lock()
	cur := m.state
	m.mu.Unlock()
	if cur != StateListening {
		return ErrInvalidStateTransition
	}
	if err := m.SetState(StatePaused, m.CorrelationID(), reason); err != nil {
		return err
	}
	m.mu.Lock()
	m.pausedFrom = cur
	m.mu.Unlock()
	return nil
}

// Resume transitions paused -> listening.
func (m *PipelineStateManager) Resume(reason string) error {
	return m.SetState(StateListening, m.CorrelationID(), reason)
}

// UpdateActivity stamps the last-activity timestamp without changing state.
func (m *PipelineStateManager) UpdateActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
}

// LastActivity returns the last activity timestamp.
func (m *PipelineStateManager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// History returns a copy of the rolling transition history, oldest first.
func (m *PipelineStateManager) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}
