package pipeline

import "testing"

func TestStateManagerValidTransitions(t *testing.T) {
	m := NewPipelineStateManager()
	if m.GetState() != StateIdle {
		t.Fatalf("expected idle, got %s", m.GetState())
	}

	if err := m.SetState(StateStarting, "corr-1", "start"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CorrelationID() != "corr-1" {
		t.Errorf("expected correlation corr-1, got %s", m.CorrelationID())
	}

	if err := m.SetState(StateListening, "corr-1", "connected"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStateManagerInvalidTransitionRejected(t *testing.T) {
	m := NewPipelineStateManager()
	err := m.SetState(StateListening, "x", "skip starting")
	if err != ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if m.GetState() != StateIdle {
		t.Errorf("state must not mutate on rejected transition, got %s", m.GetState())
	}
}

func TestStateManagerPauseResume(t *testing.T) {
	m := NewPipelineStateManager()
	_ = m.SetState(StateStarting, "c", "start")
	_ = m.SetState(StateListening, "c", "connected")

	if err := m.Pause("user paused"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.GetState() != StatePaused {
		t.Fatalf("expected paused, got %s", m.GetState())
	}

	if err := m.Resume("user resumed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.GetState() != StateListening {
		t.Fatalf("expected listening, got %s", m.GetState())
	}
}

func TestStateManagerPauseRequiresListening(t *testing.T) {
	m := NewPipelineStateManager()
	if err := m.Pause("too early"); err != ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestStateManagerHistoryBounded(t *testing.T) {
	m := NewPipelineStateManager()
	_ = m.SetState(StateStarting, "c", "start")
	_ = m.SetState(StateListening, "c", "connected")
	for i := 0; i < transitionHistorySize+10; i++ {
		_ = m.SetState(StateProcessing, "c", "tick")
		_ = m.SetState(StateListening, "c", "tick")
	}
	if len(m.History()) > transitionHistorySize {
		t.Errorf("expected history capped at %d, got %d", transitionHistorySize, len(m.History()))
	}
}
