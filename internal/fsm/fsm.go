package fsm

import "fmt"

// State is the controller's position in the section walk.
type State string

// Event is an input to Transition.
type Event string

const (
	StateIdle            State = "idle"
	StateSpeaking        State = "speaking"
	StateArmingInput     State = "arming_input"
	StateListening       State = "listening"
	StateAwaitingInput   State = "awaiting_input"
	StateAwaitingAdvance State = "awaiting_advance"
	StateSubmitting      State = "submitting"
)

const (
	EventEnter        Event = "enter"
	EventSpeak        Event = "speak"
	EventArm          Event = "arm"
	EventPrompted     Event = "prompted"
	EventListen       Event = "listen"
	EventHeard        Event = "heard"
	EventEdit         Event = "edit"
	EventHold         Event = "hold"
	EventSubmit       Event = "submit"
	EventSubmitted    Event = "submitted"
	EventSubmitFailed Event = "submit_failed"
	EventExit         Event = "exit"
)

// Active reports whether s belongs to a running session that accepts
// navigation and edits.
func Active(s State) bool {
	switch s {
	case StateSpeaking, StateArmingInput, StateListening, StateAwaitingInput, StateAwaitingAdvance:
		return true
	default:
		return false
	}
}

func Transition(current State, event Event) (State, error) {
	if event == EventExit {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventEnter:
			return StateSpeaking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventArm:
			return StateArmingInput, nil
		case EventPrompted:
			return StateAwaitingInput, nil
		}
	case StateArmingInput:
		if event == EventListen {
			return StateListening, nil
		}
	case StateListening:
		if event == EventHeard {
			return StateAwaitingInput, nil
		}
	case StateAwaitingInput:
		if event == EventArm {
			return StateArmingInput, nil
		}
	case StateAwaitingAdvance:
		if event == EventHold {
			return StateAwaitingInput, nil
		}
	case StateSubmitting:
		switch event {
		case EventSubmitted:
			return StateIdle, nil
		case EventSubmitFailed:
			return StateAwaitingInput, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	// Events shared by every active state.
	switch event {
	case EventEnter, EventSpeak:
		return StateSpeaking, nil
	case EventEdit:
		return StateAwaitingAdvance, nil
	case EventSubmit:
		return StateSubmitting, nil
	default:
		return current, invalidTransition(current, event)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
