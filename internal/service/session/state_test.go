package session

import (
	"errors"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if lc.State().IsTerminal() {
		t.Error("expected IDLE not to be terminal")
	}
}

func TestLifecycle_FullCycle(t *testing.T) {
	lc := NewLifecycle()

	steps := []struct {
		name string
		fn   func() error
		want State
	}{
		{"configured", lc.Configured, StateConfigured},
		{"streaming", lc.Streaming, StateStreaming},
		{"awaiting", lc.AwaitingCompletion, StateAwaitingCompletion},
		{"complete", lc.Complete, StateCompleted},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			t.Fatalf("%s: unexpected error: %v", s.name, err)
		}
		if lc.State() != s.want {
			t.Fatalf("%s: expected %v, got %v", s.name, s.want, lc.State())
		}
	}

	if !lc.State().IsTerminal() {
		t.Error("expected COMPLETED to be terminal")
	}
}

func TestLifecycle_SkippingAStepFails(t *testing.T) {
	lc := NewLifecycle()

	if err := lc.Streaming(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if lc.State() != StateIdle {
		t.Errorf("expected state unchanged, got %v", lc.State())
	}
}

func TestLifecycle_CompleteOnlyOnce(t *testing.T) {
	lc := NewLifecycle()
	lc.Configured()
	lc.Streaming()
	lc.AwaitingCompletion()

	if err := lc.Complete(); err != nil {
		t.Fatalf("first complete: unexpected error: %v", err)
	}
	if err := lc.Complete(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second complete: expected ErrInvalidTransition, got %v", err)
	}
}

func TestLifecycle_Cancel(t *testing.T) {
	tests := []struct {
		name  string
		steps int
		want  bool
	}{
		{"idle", 0, false},
		{"configured", 1, true},
		{"streaming", 2, true},
		{"awaiting completion", 3, true},
		{"completed", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle()
			advance := []func() error{lc.Configured, lc.Streaming, lc.AwaitingCompletion, lc.Complete}
			for i := 0; i < tt.steps; i++ {
				if err := advance[i](); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
			}

			if got := lc.Cancel(); got != tt.want {
				t.Errorf("Cancel() = %v, want %v", got, tt.want)
			}
			if tt.want && lc.State() != StateCanceled {
				t.Errorf("expected StateCanceled, got %v", lc.State())
			}
		})
	}
}

func TestLifecycle_CancelIsTerminal(t *testing.T) {
	lc := NewLifecycle()
	lc.Configured()
	lc.Cancel()

	if lc.Cancel() {
		t.Error("expected second Cancel to return false")
	}
	if err := lc.Streaming(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after cancel, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "IDLE"},
		{StateConfigured, "CONFIGURED"},
		{StateStreaming, "STREAMING"},
		{StateAwaitingCompletion, "AWAITING_COMPLETION"},
		{StateCompleted, "COMPLETED"},
		{StateCanceled, "CANCELED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}
