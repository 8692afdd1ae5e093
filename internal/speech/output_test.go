package speech

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/meddoc/internal/config"
)

func TestSynthArgvAddsEspeakFlags(t *testing.T) {
	argv := synthArgv(config.SpeechConfig{
		Command: config.CommandConfig{Argv: []string{"/usr/bin/espeak-ng"}},
		Voice:   "en-us",
		Pitch:   1.0,
		Rate:    1.2,
	})
	require.Equal(t, []string{"/usr/bin/espeak-ng", "-v", "en-us", "-p", "50", "-s", "210", "--stdin"}, argv)
}

func TestSynthArgvLeavesOtherCommandsAlone(t *testing.T) {
	argv := synthArgv(config.SpeechConfig{
		Command: config.CommandConfig{Argv: []string{"piper-say", "--model", "amy"}},
		Voice:   "en-us",
		Pitch:   1.0,
		Rate:    1.0,
	})
	require.Equal(t, []string{"piper-say", "--model", "amy"}, argv)
}

func TestCommandOutputSpeaksTextOnStdin(t *testing.T) {
	log := filepath.Join(t.TempDir(), "spoken.txt")
	out := newStubOutput(t, log)

	done := make(chan struct{})
	out.Speak("What is the patient's first name?", func() { close(done) })
	require.True(t, out.Speaking())

	waitClosed(t, done)
	require.False(t, out.Speaking())
	require.Equal(t, "What is the patient's first name?|", readFile(t, log))
}

func TestCommandOutputStopSuppressesCallback(t *testing.T) {
	out := newStubOutput(t, filepath.Join(t.TempDir(), "spoken.txt"))

	fired := make(chan struct{}, 1)
	out.Speak("slow", func() { fired <- struct{}{} })
	out.Stop()
	out.Stop()

	require.False(t, out.Speaking())
	require.Never(t, func() bool { return len(fired) > 0 }, 300*time.Millisecond, 20*time.Millisecond)
}

func TestCommandOutputSpeakSupersedesUtterance(t *testing.T) {
	log := filepath.Join(t.TempDir(), "spoken.txt")
	out := newStubOutput(t, log)

	first := make(chan struct{}, 1)
	second := make(chan struct{})
	out.Speak("slow", func() { first <- struct{}{} })
	out.Speak("Which city?", func() { close(second) })

	waitClosed(t, second)
	require.Equal(t, "Which city?|", readFile(t, log))
	require.Never(t, func() bool { return len(first) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestCommandOutputCompletesWhenSynthIsMissing(t *testing.T) {
	out := NewCommandOutput(config.SpeechConfig{
		Command: config.CommandConfig{Argv: []string{filepath.Join(t.TempDir(), "no-such-synth")}},
	}, nil)

	done := make(chan struct{})
	out.Speak("hello", func() { close(done) })
	waitClosed(t, done)
}

// newStubOutput installs a synthesizer that appends its stdin plus "|" to
// log, sleeping first when the text is "slow".
func newStubOutput(t *testing.T, log string) *CommandOutput {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-synth")
	script := `#!/usr/bin/env bash
set -euo pipefail
text="$(cat)"
if [[ "$text" == "slow" ]]; then
  sleep 5
fi
printf '%s|' "$text" >> "` + log + `"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return NewCommandOutput(config.SpeechConfig{Command: config.CommandConfig{Argv: []string{path}}}, nil)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("callback did not fire")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
