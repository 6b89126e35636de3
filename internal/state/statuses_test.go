package state

import (
	"testing"
)

func TestRunnerState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    RunnerState
		expected string
	}{
		{name: "Idle state", state: StateIdle, expected: "idle"},
		{name: "Claiming state", state: StateClaiming, expected: "claiming"},
		{name: "Executing state", state: StateExecuting, expected: "executing"},
		{name: "Draining state", state: StateDraining, expected: "draining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.state.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     RunnerState
		to       RunnerState
		expected bool
	}{
		{name: "Idle to Claiming", from: StateIdle, to: StateClaiming, expected: true},
		{name: "Claiming to Executing", from: StateClaiming, to: StateExecuting, expected: true},
		{name: "Claiming to Idle on empty batch", from: StateClaiming, to: StateIdle, expected: true},
		{name: "Executing to Idle", from: StateExecuting, to: StateIdle, expected: true},
		{name: "Executing to Draining", from: StateExecuting, to: StateDraining, expected: true},
		{name: "Idle to Executing", from: StateIdle, to: StateExecuting, expected: false},
		{name: "Draining to Idle", from: StateDraining, to: StateIdle, expected: false},
		{name: "Draining to Claiming", from: StateDraining, to: StateClaiming, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%v, %v) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range AllStates {
		if got := s.IsTerminal(); got != (s == StateDraining) {
			t.Errorf("%s.IsTerminal() = %v", s, got)
		}
	}
}
