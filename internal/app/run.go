package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/meddoc/internal/asr"
	"github.com/rbright/meddoc/internal/audio"
	"github.com/rbright/meddoc/internal/auth"
	"github.com/rbright/meddoc/internal/catalog"
	"github.com/rbright/meddoc/internal/config"
	"github.com/rbright/meddoc/internal/docstore"
	"github.com/rbright/meddoc/internal/indicator"
	"github.com/rbright/meddoc/internal/ipc"
	"github.com/rbright/meddoc/internal/observe"
	"github.com/rbright/meddoc/internal/session"
	"github.com/rbright/meddoc/internal/speech"
	"github.com/rbright/meddoc/internal/version"
	"github.com/rbright/meddoc/internal/voice"
)

const (
	recognizerProbeTimeout = 2 * time.Second
	metricsFlushTimeout    = 2 * time.Second
)

func (r Runner) stdin() io.Reader {
	if r.Stdin == nil {
		return os.Stdin
	}
	return r.Stdin
}

// commandRun owns the control socket for the lifetime of one session.
// Session metrics are appended to metricsPath.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger, metricsPath string) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version.Version,
		Path:           metricsPath,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsFlushTimeout)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Warn("metrics flush failed", "path", metricsPath, "error", err.Error())
		}
	}()

	out := newSyncWriter(r.Stdout)
	deps, err := r.dependencies(ctx, cfg, logger, out)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	controller := session.NewController(cat, deps, session.Config{
		ArmDelay:      cfg.Timing.ArmDelay(),
		TextAdvance:   cfg.Timing.TextAdvance(),
		ChoiceAdvance: cfg.Timing.ChoiceAdvance(),
		Collection:    cfg.Store.Collection,
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()
	go runConsole(serverCtx, r.stdin(), out, controller)

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: control server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)
	return r.reportResult(result)
}

func (r Runner) reportResult(result session.Result) int {
	switch {
	case result.Err != nil && !errors.Is(result.Err, context.Canceled):
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	case result.Outcome == session.OutcomeSubmitted:
		fmt.Fprintf(r.Stdout, "submitted %s to %s\n", result.Receipt.DocumentID, result.Receipt.Collection)
	default:
		fmt.Fprintln(r.Stdout, string(result.Outcome))
	}
	return 0
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Path)
}

// dependencies wires the session's collaborators from config. Disabled
// speech falls back to silent output; a recognizer that cannot be reached
// at startup leaves the session keyboard-only.
func (r Runner) dependencies(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) (session.Dependencies, error) {
	tokens, err := auth.NewTokenSession(cfg.Auth, logger)
	if err != nil {
		return session.Dependencies{}, fmt.Errorf("resolve token path: %w", err)
	}

	deps := session.Dependencies{
		Logger:    logger,
		Submitter: docstore.NewClient(docstore.ClientConfig{Endpoint: cfg.Store.Endpoint, Timeout: cfg.Store.Timeout()}),
		Auth:      tokens,
		Sink:      newTerminalSink(out),
		Indicator: indicator.New(cfg.Indicator, logger),
		Metrics:   observe.Global(),
		Matcher:   matcherFor(cfg.Voice),
	}

	if cfg.Speech.Enable {
		deps.Output = speech.NewCommandOutput(cfg.Speech, logger)
	}

	if cfg.Recognition.Enable {
		input, err := r.recognizer(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: speech input unavailable: %v\n", err)
			logger.Warn("speech input unavailable", "endpoint", cfg.Recognition.Endpoint, "error", err.Error())
		} else {
			deps.Input = input
		}
	}
	return deps, nil
}

func (r Runner) recognizer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*speech.Recognizer, error) {
	client := asr.NewClient(asr.ClientConfig{
		Endpoint:    cfg.Recognition.Endpoint,
		DialTimeout: cfg.Recognition.DialTimeout(),
		Stream: asr.StreamConfig{
			LanguageCode:    cfg.Recognition.LanguageCode,
			SampleRateHertz: audio.SampleRateHertz,
		},
	})

	probeCtx, cancel := context.WithTimeout(ctx, recognizerProbeTimeout)
	defer cancel()
	if err := client.Probe(probeCtx); err != nil {
		return nil, err
	}

	mic := audio.Microphone{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger}
	return speech.NewRecognizer(speech.RecognizerConfig{
		OpenAudio: func(ctx context.Context) (speech.AudioSource, error) {
			capture, err := mic.Open(ctx)
			if err != nil {
				return nil, err
			}
			return capture, nil
		},
		OpenStream: func(ctx context.Context) (speech.TranscriptStream, error) {
			stream, err := client.Open(ctx)
			if err != nil {
				return nil, err
			}
			return stream, nil
		},
		PhraseLimit: cfg.Recognition.PhraseLimit(),
		Logger:      logger,
	}), nil
}

func matcherFor(cfg config.VoiceConfig) voice.ChoiceMatcher {
	if cfg.PhoneticChoices {
		return voice.PhoneticMatcher{Threshold: cfg.PhoneticThreshold}
	}
	return voice.SubstringMatcher{}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session", result.SessionID,
		"outcome", result.Outcome,
		"section", result.Section,
		"fields_filled", result.Form.Filled(),
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}
	if result.Receipt.DocumentID != "" {
		fields = append(fields, "document", result.Receipt.DocumentID)
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
