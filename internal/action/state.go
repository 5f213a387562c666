package action

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of one proposal.
type Status string

const (
	StatusProposed        Status = "proposed"
	StatusConfirmed       Status = "confirmed"
	StatusDenied          Status = "denied"
	StatusExecuted        Status = "executed"
	StatusExecutionFailed Status = "execution_failed"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusDenied, StatusExecuted, StatusExecutionFailed:
		return true
	}
	return false
}

// Decided reports whether the user has answered the proposal.
func (s Status) Decided() bool {
	return s != StatusProposed
}

// Event drives a transition.
type Event string

const (
	EventConfirm          Event = "confirm"
	EventDeny             Event = "deny"
	EventExecuteSucceeded Event = "execute_succeeded"
	EventExecuteFailed    Event = "execute_failed"
)

// ErrIllegalTransition is returned when an event is not accepted in the current state.
var ErrIllegalTransition = errors.New("illegal proposal transition")

// Transition is the pure transition function of the confirmation state machine.
func Transition(from Status, ev Event) (Status, error) {
	switch from {
	case StatusProposed:
		switch ev {
		case EventConfirm:
			return StatusConfirmed, nil
		case EventDeny:
			return StatusDenied, nil
		}
	case StatusConfirmed:
		switch ev {
		case EventExecuteSucceeded:
			return StatusExecuted, nil
		case EventExecuteFailed:
			return StatusExecutionFailed, nil
		}
	}
	return from, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, ev, from)
}
