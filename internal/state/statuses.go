// Package state holds the Job Runner state machine.
package state

type RunnerState string

const (
	StateIdle      RunnerState = "idle"
	StateClaiming  RunnerState = "claiming"
	StateExecuting RunnerState = "executing"
	StateDraining  RunnerState = "draining"
)

func (s RunnerState) String() string {
	return string(s)
}

var AllStates = []RunnerState{
	StateIdle,
	StateClaiming,
	StateExecuting,
	StateDraining,
}

type Transition struct {
	From RunnerState
	To   RunnerState
}

var ValidTransitions = []Transition{
	{From: StateIdle, To: StateClaiming},
	{From: StateClaiming, To: StateExecuting},
	{From: StateClaiming, To: StateIdle},
	{From: StateExecuting, To: StateIdle},
	{From: StateIdle, To: StateDraining},
	{From: StateClaiming, To: StateDraining},
	{From: StateExecuting, To: StateDraining},
}

func IsValidTransition(from, to RunnerState) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s RunnerState) IsTerminal() bool {
	for _, t := range ValidTransitions {
		if t.From == s {
			return false
		}
	}
	return true
}
