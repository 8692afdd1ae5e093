// Package indicator gives the intake session audible cues and desktop
// notifications.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/meddoc/internal/config"
)

const (
	promptTimeoutMS       = 300000
	defaultErrorTimeoutMS = 1200
	dispatchTimeout       = 400 * time.Millisecond
)

// Notifier implements the session indicator on top of freedesktop
// notifications and PulseAudio cue playback. Every method is best effort;
// failures are logged at debug level and never surface to the caller.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger
	text   messages

	desktop desktop
	play    func(context.Context, cueKind) error

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// New builds a Notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	appName := strings.TrimSpace(cfg.DesktopAppName)
	if appName == "" {
		appName = "meddoc"
	}
	return &Notifier{
		cfg:     cfg,
		logger:  logger,
		text:    defaultMessages(),
		desktop: busctl{appName: appName},
		play:    emitCue,
	}
}

// ShowPrompt shows the section being asked.
func (n *Notifier) ShowPrompt(ctx context.Context, title string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, promptTimeoutMS, n.text.prompt(title))
	})
}

// ShowListening plays the listening cue and swaps the notification text.
func (n *Notifier) ShowListening(ctx context.Context) {
	n.playCue(cueListen)
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, promptTimeoutMS, n.text.listening)
	})
}

// ShowError displays text briefly, falling back to a generic message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if !n.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = n.text.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorTimeoutMS
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, timeout, text)
	})
}

func (n *Notifier) CueHeard(context.Context)    { n.playCue(cueHeard) }
func (n *Notifier) CueComplete(context.Context) { n.playCue(cueComplete) }
func (n *Notifier) CueCancel(context.Context)   { n.playCue(cueCancel) }

// Hide closes the current notification, if any.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		n.mu.Lock()
		id := n.notificationID
		n.notificationID = 0
		n.mu.Unlock()

		if id == 0 {
			return nil
		}
		return n.desktop.Dismiss(ctx, id)
	})
}

// notify replaces the previous notification so the session only ever owns one.
func (n *Notifier) notify(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	id, err := n.desktop.Notify(ctx, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes playback so cues never overlap.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.play(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
