// Package speech adapts a synthesizer command and a streaming recognizer to
// the session's speech ports.
package speech

import (
	"context"
	"log/slog"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/meddoc/internal/config"
)

// espeak's neutral pitch and default words-per-minute.
const (
	espeakPitch = 50
	espeakWPM   = 175
)

// CommandOutput speaks text by running a synthesizer with the text on stdin.
// Each Speak kills whatever utterance is still running.
type CommandOutput struct {
	argv   []string
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	turn   uint64
}

// NewCommandOutput builds the synthesizer argv from cfg. espeak and
// espeak-ng get voice, pitch and rate flags; other commands run as given.
func NewCommandOutput(cfg config.SpeechConfig, logger *slog.Logger) *CommandOutput {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommandOutput{argv: synthArgv(cfg), logger: logger}
}

func synthArgv(cfg config.SpeechConfig) []string {
	argv := append([]string(nil), cfg.Command.Argv...)
	if len(argv) == 0 || !strings.HasPrefix(filepath.Base(argv[0]), "espeak") {
		return argv
	}
	if v := strings.TrimSpace(cfg.Voice); v != "" {
		argv = append(argv, "-v", v)
	}
	if cfg.Pitch > 0 {
		argv = append(argv, "-p", strconv.Itoa(int(math.Round(cfg.Pitch*espeakPitch))))
	}
	if cfg.Rate > 0 {
		argv = append(argv, "-s", strconv.Itoa(int(math.Round(cfg.Rate*espeakWPM))))
	}
	return append(argv, "--stdin")
}

// Speak starts text. done runs once the synthesizer exits, whether or not it
// succeeded, unless the utterance was stopped or replaced first.
func (o *CommandOutput) Speak(text string, done func()) {
	ctx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.stopLocked()
	o.turn++
	turn := o.turn
	o.cancel = cancel
	o.mu.Unlock()

	go func() {
		err := o.run(ctx, text)
		cancel()

		o.mu.Lock()
		current := o.turn == turn
		if current {
			o.cancel = nil
		}
		o.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			o.logger.Debug("synthesizer failed", "error", err)
		}
		if done != nil {
			done()
		}
	}()
}

func (o *CommandOutput) run(ctx context.Context, text string) error {
	if len(o.argv) == 0 {
		return exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, o.argv[0], o.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = time.Second
	return cmd.Run()
}

func (o *CommandOutput) stopLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.turn++
}

// Stop kills the current utterance without running its callback.
func (o *CommandOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *CommandOutput) Speaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}
