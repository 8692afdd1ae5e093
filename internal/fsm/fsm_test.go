package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionVoicePath(t *testing.T) {
	s := StateIdle

	steps := []struct {
		event Event
		want  State
	}{
		{EventEnter, StateSpeaking},
		{EventArm, StateArmingInput},
		{EventListen, StateListening},
		{EventEdit, StateAwaitingAdvance},
		{EventEnter, StateSpeaking},
		{EventArm, StateArmingInput},
		{EventListen, StateListening},
		{EventHeard, StateAwaitingInput},
		{EventSubmit, StateSubmitting},
		{EventSubmitted, StateIdle},
	}

	for _, step := range steps {
		next, err := Transition(s, step.event)
		require.NoError(t, err, "%s --(%s)", s, step.event)
		require.Equal(t, step.want, next)
		s = next
	}
}

func TestTransitionExitFromAnyStateGoesIdle(t *testing.T) {
	states := []State{
		StateIdle, StateSpeaking, StateArmingInput, StateListening,
		StateAwaitingInput, StateAwaitingAdvance, StateSubmitting,
	}
	for _, state := range states {
		next, err := Transition(state, EventExit)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle speak invalid", state: StateIdle, event: EventSpeak, want: StateIdle, wantErr: true},
		{name: "idle edit invalid", state: StateIdle, event: EventEdit, want: StateIdle, wantErr: true},
		{name: "idle submit invalid", state: StateIdle, event: EventSubmit, want: StateIdle, wantErr: true},
		{name: "speaking without input", state: StateSpeaking, event: EventPrompted, want: StateAwaitingInput},
		{name: "speaking listen invalid", state: StateSpeaking, event: EventListen, want: StateSpeaking, wantErr: true},
		{name: "speaking heard invalid", state: StateSpeaking, event: EventHeard, want: StateSpeaking, wantErr: true},
		{name: "arming heard invalid", state: StateArmingInput, event: EventHeard, want: StateArmingInput, wantErr: true},
		{name: "arming interrupted by edit", state: StateArmingInput, event: EventEdit, want: StateAwaitingAdvance},
		{name: "listening arm invalid", state: StateListening, event: EventArm, want: StateListening, wantErr: true},
		{name: "listening repeat", state: StateListening, event: EventSpeak, want: StateSpeaking},
		{name: "awaiting input rearm", state: StateAwaitingInput, event: EventArm, want: StateArmingInput},
		{name: "awaiting input hold invalid", state: StateAwaitingInput, event: EventHold, want: StateAwaitingInput, wantErr: true},
		{name: "advance hold on last section", state: StateAwaitingAdvance, event: EventHold, want: StateAwaitingInput},
		{name: "advance re-edit", state: StateAwaitingAdvance, event: EventEdit, want: StateAwaitingAdvance},
		{name: "advance arm invalid", state: StateAwaitingAdvance, event: EventArm, want: StateAwaitingAdvance, wantErr: true},
		{name: "submitting enter invalid", state: StateSubmitting, event: EventEnter, want: StateSubmitting, wantErr: true},
		{name: "submitting edit invalid", state: StateSubmitting, event: EventEdit, want: StateSubmitting, wantErr: true},
		{name: "submit failure keeps session", state: StateSubmitting, event: EventSubmitFailed, want: StateAwaitingInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestActive(t *testing.T) {
	require.False(t, Active(StateIdle))
	require.False(t, Active(StateSubmitting))
	require.True(t, Active(StateListening))
	require.True(t, Active(StateAwaitingAdvance))
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventEnter)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
