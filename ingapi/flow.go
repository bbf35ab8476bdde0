package ingapi

import (
	"errors"
	"fmt"
)

// Step names a request of the flow.
type Step string

const (
	StepToken    Step = "token"
	StepResource Step = "resource"
)

// State is the position of a Flow.
type State int

const (
	StateUnauthenticated State = iota
	StateTokenRequested
	StateRegistered
	StateResourceRequested
	StateVerified
	StateVerificationFailed
)

var stateNames = map[State]string{
	StateUnauthenticated:    "unauthenticated",
	StateTokenRequested:     "token_requested",
	StateRegistered:         "registered",
	StateResourceRequested:  "resource_requested",
	StateVerified:           "verified",
	StateVerificationFailed: "verification_failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the flow completed the verification step.
func (s State) Terminal() bool {
	return s == StateVerified || s == StateVerificationFailed
}

var transitions = map[State][]State{
	StateUnauthenticated:   {StateTokenRequested},
	StateTokenRequested:    {StateRegistered},
	StateRegistered:        {StateResourceRequested},
	StateResourceRequested: {StateVerified, StateVerificationFailed},
}

// ErrInvalidTransition is returned when a flow is moved out of order.
var ErrInvalidTransition = errors.New("ingapi: invalid flow transition")

// Flow records the progress of one token, resource, verify sequence. A
// step that fails leaves the flow in the state it had reached.
type Flow struct {
	state State

	// Registration is set once the token step succeeded.
	Registration *Registration

	// Result is set once the resource step returned 200.
	Result *Result

	// Err is the error that ended the flow early, if any.
	Err error
}

// NewFlow returns a flow in StateUnauthenticated.
func NewFlow() *Flow {
	return &Flow{state: StateUnauthenticated}
}

func (f *Flow) State() State {
	return f.state
}

func (f *Flow) advance(to State) error {
	for _, next := range transitions[f.state] {
		if next == to {
			f.state = to
			return nil
		}
	}

	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, f.state, to)
}

// outcome is the ingsig_flows_total label for the flow's current state.
func (f *Flow) outcome() string {
	switch f.state {
	case StateVerified:
		return "verified"
	case StateVerificationFailed:
		return "verification_failed"
	case StateTokenRequested:
		return "token_failed"
	default:
		return "resource_failed"
	}
}
