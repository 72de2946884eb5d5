// internal/action/state.go
package action

import (
	"go.uber.org/zap"
)

// State is a step in the lifecycle of one orchestrated action.
type State int

const (
	Idle State = iota
	TargetResolved
	SentinelArmed
	ActionPerformed
	AwaitingCompletion
	Completed
	TimedOutWarned
	TimedOutError
	// Failed is terminal for errors raised before the completion wait.
	Failed
)

var stateNames = [...]string{
	Idle:               "idle",
	TargetResolved:     "target_resolved",
	SentinelArmed:      "sentinel_armed",
	ActionPerformed:    "action_performed",
	AwaitingCompletion: "awaiting_completion",
	Completed:          "completed",
	TimedOutWarned:     "timed_out_warned",
	TimedOutError:      "timed_out_error",
	Failed:             "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case Completed, TimedOutWarned, TimedOutError, Failed:
		return true
	}
	return false
}

// transitions lists the legal moves. A stale retry returns to TargetResolved from
// any pre-action state.
var transitions = map[State][]State{
	Idle:               {TargetResolved, Completed, Failed},
	TargetResolved:     {TargetResolved, SentinelArmed, ActionPerformed, Failed},
	SentinelArmed:      {TargetResolved, ActionPerformed, Failed},
	ActionPerformed:    {AwaitingCompletion, Completed},
	AwaitingCompletion: {Completed, TimedOutWarned, TimedOutError},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionFunc observes state changes of orchestrated actions.
type TransitionFunc func(label string, from, to State)

// Outcome is the result of an orchestrated action.
type Outcome struct {
	Completed bool
	State     State
}

type run struct {
	label    string
	state    State
	logger   *zap.Logger
	observer TransitionFunc
}

func (r *run) to(next State) {
	if !CanTransition(r.state, next) {
		r.logger.Error("Illegal action state transition.",
			zap.String("label", r.label), zap.Stringer("from", r.state), zap.Stringer("to", next))
	}
	prev := r.state
	r.state = next
	if r.observer != nil {
		r.observer(r.label, prev, next)
	}
}

func (r *run) outcome() Outcome {
	return Outcome{Completed: r.state == Completed, State: r.state}
}
