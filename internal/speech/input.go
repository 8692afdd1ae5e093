package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/meddoc/internal/session"
)

// AudioSource is a running capture.
type AudioSource interface {
	Chunks() <-chan []byte
	Stop() error
}

// TranscriptStream is one recognition request in flight.
type TranscriptStream interface {
	SendAudio([]byte) error
	Final() <-chan struct{}
	CloseAndCollect(context.Context) (string, time.Duration, error)
	Cancel() error
}

// RecognizerConfig wires capture and recognition for a Recognizer.
type RecognizerConfig struct {
	OpenAudio   func(context.Context) (AudioSource, error)
	OpenStream  func(context.Context) (TranscriptStream, error)
	PhraseLimit time.Duration
	// CollectTimeout bounds the wait for the last hypothesis after audio ends.
	CollectTimeout time.Duration
	Logger         *slog.Logger
}

// Recognizer listens for one answer per Start: it streams microphone audio
// until the recognizer reports a final transcript or the phrase limit runs
// out, then reports what was heard.
type Recognizer struct {
	cfg    RecognizerConfig
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	cycle  uint64
}

func NewRecognizer(cfg RecognizerConfig) *Recognizer {
	if cfg.PhraseLimit <= 0 {
		cfg.PhraseLimit = 5 * time.Second
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recognizer{cfg: cfg, logger: logger}
}

func (r *Recognizer) Supported() bool {
	return r.cfg.OpenAudio != nil && r.cfg.OpenStream != nil
}

// Start begins a listening cycle unless one is already running.
func (r *Recognizer) Start(done func(session.Recognition)) {
	r.mu.Lock()
	if r.cancel != nil || !r.Supported() {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cycle++
	cycle := r.cycle
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		text, err := r.listen(ctx)
		cancel()

		r.mu.Lock()
		current := r.cycle == cycle
		if current {
			r.cancel = nil
		}
		r.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			r.logger.Debug("recognition failed", "error", err)
			text = ""
		}
		if done != nil {
			done(session.Recognition{Text: text, OK: text != ""})
		}
	}()
}

// Stop abandons the current cycle; its callback never runs.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.cycle++
}

func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Recognizer) listen(ctx context.Context) (string, error) {
	stream, err := r.cfg.OpenStream(ctx)
	if err != nil {
		return "", err
	}

	limitCtx, cancel := context.WithTimeout(ctx, r.cfg.PhraseLimit)
	defer cancel()

	src, err := r.cfg.OpenAudio(limitCtx)
	if err != nil {
		_ = stream.Cancel()
		return "", err
	}

	g, gctx := errgroup.WithContext(limitCtx)
	pumped := make(chan struct{})
	g.Go(func() error {
		defer close(pumped)
		for chunk := range src.Chunks() {
			if err := stream.SendAudio(chunk); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-stream.Final():
		case <-pumped:
		case <-gctx.Done():
		}
		return src.Stop()
	})
	pumpErr := g.Wait()

	if err := ctx.Err(); err != nil {
		_ = stream.Cancel()
		return "", err
	}
	if pumpErr != nil {
		_ = stream.Cancel()
		return "", pumpErr
	}

	collectCtx, cancelCollect := context.WithTimeout(ctx, r.cfg.CollectTimeout)
	defer cancelCollect()
	text, tail, err := stream.CloseAndCollect(collectCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			_ = stream.Cancel()
		}
		return "", err
	}
	r.logger.Debug("recognition finished", "tail", tail, "chars", len(text))
	return text, nil
}
