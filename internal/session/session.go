// Package session drives one voice-guided walk through the intake catalog:
// prompts are spoken, answers are heard or typed, and sections advance on
// timers until the form is submitted or abandoned.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/meddoc/internal/catalog"
	"github.com/rbright/meddoc/internal/form"
	"github.com/rbright/meddoc/internal/fsm"
	"github.com/rbright/meddoc/internal/observe"
	"github.com/rbright/meddoc/internal/voice"
)

var (
	ErrNotLastSection    = errors.New("submit is only available on the last section")
	ErrNotAuthenticated  = errors.New("not signed in")
	ErrListening         = errors.New("cannot re-read while listening")
	ErrInputUnsupported  = errors.New("speech input is not available")
	ErrFieldNotInSection = errors.New("field does not belong to the current section")
	ErrNotActive         = errors.New("session is not accepting input")
	ErrClosed            = errors.New("session has ended")
	ErrAlreadyRunning    = errors.New("session is already running")
)

// SubmissionError carries a failure reported by the Submitter. The form is
// left intact so submission can be retried.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return "submission failed: " + e.Message }
func (e *SubmissionError) Unwrap() error { return e.Err }

// Outcome says how a session ended.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeExited    Outcome = "exited"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeClosed    Outcome = "closed"
)

// Result is returned by Run.
type Result struct {
	SessionID  string
	Outcome    Outcome
	Section    int
	Receipt    Receipt
	Form       form.Snapshot
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Config holds controller timings. Zero durations fall back to defaults.
type Config struct {
	ArmDelay      time.Duration
	TextAdvance   time.Duration
	ChoiceAdvance time.Duration
	Collection    string
}

func DefaultConfig() Config {
	return Config{
		ArmDelay:      500 * time.Millisecond,
		TextAdvance:   2000 * time.Millisecond,
		ChoiceAdvance: 1500 * time.Millisecond,
		Collection:    "Offices/traneyes/forms",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ArmDelay <= 0 {
		c.ArmDelay = d.ArmDelay
	}
	if c.TextAdvance <= 0 {
		c.TextAdvance = d.TextAdvance
	}
	if c.ChoiceAdvance <= 0 {
		c.ChoiceAdvance = d.ChoiceAdvance
	}
	if c.Collection == "" {
		c.Collection = d.Collection
	}
	return c
}

// Dependencies wires the controller's collaborators. Nil members fall back
// to silent output, unsupported input, a signed-out user and no-op sinks.
type Dependencies struct {
	Logger    *slog.Logger
	Output    SpeechOutput
	Input     SpeechInput
	Submitter Submitter
	Auth      Authenticator
	Sink      EventSink
	Indicator Indicator
	Metrics   *observe.Metrics
	Clock     Clock
	Matcher   voice.ChoiceMatcher
}

// Status is a point-in-time view of the controller.
type Status struct {
	SessionID  string
	State      fsm.State
	Section    int
	Total      int
	Title      string
	Prompt     string
	Field      string
	Kind       catalog.Kind
	Choices    []string
	Speaking   bool
	Listening  bool
	AdvanceDue time.Time
	Form       form.Snapshot
}

// Controller owns one intake session. All state below the mailbox is
// touched only by the goroutine executing Run.
type Controller struct {
	id        string
	logger    *slog.Logger
	catalog   *catalog.Catalog
	store     *form.Store
	output    SpeechOutput
	input     SpeechInput
	voiceIn   bool
	submitter Submitter
	auth      Authenticator
	sink      EventSink
	indicator Indicator
	metrics   *observe.Metrics
	clock     Clock
	matcher   voice.ChoiceMatcher
	cfg       Config

	mailbox   *mailbox
	running   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closing   chan struct{}

	statusMu sync.RWMutex
	status   Status

	state        fsm.State
	index        int
	field        string
	gen          uint64
	armTimer     Timer
	advanceTimer Timer
	advanceDue   time.Time
	listenedAt   time.Time
	finished     bool
	result       Result
}

// NewController builds a controller positioned before section 0.
func NewController(cat *catalog.Catalog, deps Dependencies, cfg Config) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Output == nil {
		deps.Output = silentOutput{}
	}
	if deps.Input == nil {
		deps.Input = noInput{}
	}
	if deps.Submitter == nil {
		deps.Submitter = SubmitFunc(func(context.Context, Submission) (Receipt, error) {
			return Receipt{}, ErrNoSubmitter
		})
	}
	if deps.Auth == nil {
		deps.Auth = signedOut{}
	}
	if deps.Sink == nil {
		deps.Sink = noopSink{}
	}
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.Matcher == nil {
		deps.Matcher = voice.SubstringMatcher{}
	}

	id := uuid.NewString()
	c := &Controller{
		id:        id,
		logger:    deps.Logger.With("session", id),
		catalog:   cat,
		store:     form.NewStore(cat),
		output:    deps.Output,
		input:     deps.Input,
		voiceIn:   deps.Input.Supported(),
		submitter: deps.Submitter,
		auth:      deps.Auth,
		sink:      deps.Sink,
		indicator: deps.Indicator,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		matcher:   deps.Matcher,
		cfg:       cfg.withDefaults(),
		mailbox:   newMailbox(),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
		state:     fsm.StateIdle,
	}
	c.publish()
	return c
}

// ID is the session identifier attached to logs and submissions.
func (c *Controller) ID() string { return c.id }

// VoiceInput reports whether speech input was available at construction.
func (c *Controller) VoiceInput() bool { return c.voiceIn }

// Run presents section 0 and serves the session until it is submitted,
// exited, closed, or ctx is cancelled. Every exit path stops speech output,
// speech input and pending timers.
func (c *Controller) Run(ctx context.Context) Result {
	if !c.running.CompareAndSwap(false, true) {
		return Result{SessionID: c.id, Err: ErrAlreadyRunning}
	}
	defer close(c.done)

	c.result = Result{SessionID: c.id, StartedAt: c.clock.Now()}
	c.logger.Info("session started", "sections", c.catalog.Len(), "voice_input", c.voiceIn)

	c.enter(ctx, 0, "start")
	c.publish()

	for !c.finished {
		select {
		case <-ctx.Done():
			c.finish(ctx, OutcomeCancelled, ctx.Err())
		case <-c.closing:
			c.finish(ctx, OutcomeClosed, nil)
		case <-c.mailbox.notify:
			for !c.finished {
				fn := c.mailbox.take()
				if fn == nil {
					break
				}
				fn(ctx)
			}
		}
		c.publish()
	}
	return c.result
}

// Close ends a running session from outside, as when the UI goes away.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	s := c.status
	s.Choices = append([]string(nil), s.Choices...)
	return s
}

func (c *Controller) publish() {
	s := Status{
		SessionID:  c.id,
		State:      c.state,
		Section:    c.index,
		Total:      c.catalog.Len(),
		Field:      c.field,
		Speaking:   c.output.Speaking(),
		Listening:  c.input.Listening(),
		AdvanceDue: c.advanceDue,
		Form:       c.store.Snapshot(),
	}
	if section, err := c.catalog.SectionAt(c.index); err == nil {
		s.Title = section.Title
		s.Prompt = section.Prompt
		s.Kind = section.Kind
		s.Choices = section.Choices
	}

	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// call runs fn on the controller goroutine and waits for its result.
func (c *Controller) call(ctx context.Context, fn func(context.Context) error) error {
	reply := make(chan error, 1)
	c.mailbox.post(func(loopCtx context.Context) {
		if c.finished {
			reply <- ErrClosed
			return
		}
		err := fn(loopCtx)
		c.publish()
		reply <- err
	})

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) apply(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Debug("transition rejected", "state", c.state, "event", event, "error", err)
		return err
	}
	if next != c.state {
		c.state = next
		c.sink.StateChanged(next)
	}
	return nil
}

func (c *Controller) current() catalog.Section {
	section, err := c.catalog.SectionAt(c.index)
	if err != nil {
		panic(fmt.Sprintf("session: current section: %v", err))
	}
	return section
}

// supersede invalidates every outstanding wait: the utterance, the
// recognition cycle, and both timers. Callbacks issued under an older
// generation are dropped when they arrive.
func (c *Controller) supersede() {
	c.gen++
	c.output.Stop()
	c.input.Stop()
	stopTimer(&c.armTimer)
	stopTimer(&c.advanceTimer)
	c.advanceDue = time.Time{}
}

func (c *Controller) stale(ctx context.Context, gen uint64, want fsm.State, kind string) bool {
	if gen == c.gen && c.state == want {
		return false
	}
	c.logger.Debug("stale callback dropped",
		"callback", kind, "generation", gen, "current_generation", c.gen, "state", c.state)
	c.metrics.StaleCallback(ctx, kind)
	return true
}

// enter presents section i.
func (c *Controller) enter(ctx context.Context, i int, trigger string) {
	c.supersede()
	c.index = i
	section := c.current()
	c.field = targetField(section, c.store)

	_ = c.apply(fsm.EventEnter)
	c.logger.Info("section entered", "section", i, "title", section.Title, "trigger", trigger)
	c.metrics.SectionEntered(ctx, i, trigger)
	c.sink.SectionEntered(section, c.catalog.Len())
	c.indicator.ShowPrompt(ctx, section.Title)
	c.speak(section.Prompt)
}

func (c *Controller) speak(text string) {
	gen := c.gen
	c.output.Speak(text, func() {
		c.mailbox.post(func(ctx context.Context) { c.onSpoken(ctx, gen) })
	})
}

// reread speaks the current prompt again without moving.
func (c *Controller) reread(ctx context.Context) {
	c.supersede()
	section := c.current()
	c.field = targetField(section, c.store)
	_ = c.apply(fsm.EventSpeak)
	c.indicator.ShowPrompt(ctx, section.Title)
	c.speak(section.Prompt)
}

func (c *Controller) onSpoken(ctx context.Context, gen uint64) {
	if c.stale(ctx, gen, fsm.StateSpeaking, "speech") {
		return
	}
	if !c.voiceIn {
		_ = c.apply(fsm.EventPrompted)
		return
	}
	c.arm()
}

func (c *Controller) arm() {
	if err := c.apply(fsm.EventArm); err != nil {
		return
	}
	c.field = targetField(c.current(), c.store)
	gen := c.gen
	c.armTimer = c.clock.AfterFunc(c.cfg.ArmDelay, func() {
		c.mailbox.post(func(ctx context.Context) { c.onArmed(ctx, gen) })
	})
}

func (c *Controller) onArmed(ctx context.Context, gen uint64) {
	if c.stale(ctx, gen, fsm.StateArmingInput, "arm") {
		return
	}
	c.armTimer = nil
	_ = c.apply(fsm.EventListen)
	c.listenedAt = c.clock.Now()
	c.indicator.ShowListening(ctx)
	c.logger.Debug("listening", "section", c.index, "field", c.field)
	c.input.Start(func(r Recognition) {
		c.mailbox.post(func(ctx context.Context) { c.onHeard(ctx, gen, r) })
	})
}

func (c *Controller) onHeard(ctx context.Context, gen uint64, r Recognition) {
	if c.stale(ctx, gen, fsm.StateListening, "recognition") {
		return
	}
	c.metrics.RecognitionTook(ctx, c.clock.Now().Sub(c.listenedAt), r.OK)

	section := c.current()
	var cmd voice.Command
	usable := false
	if r.OK {
		cmd, usable = voice.Classify(r.Text, section, c.matcher)
	}
	if r.OK {
		c.sink.Recognized(r.Text, cmd, usable)
	}
	if !usable {
		c.logger.Debug("nothing usable heard", "section", c.index, "text", r.Text)
		c.indicator.CueCancel(ctx)
		_ = c.apply(fsm.EventHeard)
		return
	}

	c.logger.Info("voice command", "section", c.index, "command", cmd.String())
	c.metrics.VoiceCommand(ctx, string(cmd.Kind))

	switch cmd.Kind {
	case voice.KindNext:
		if c.index+1 < c.catalog.Len() {
			c.enter(ctx, c.index+1, "voice")
			return
		}
		_ = c.apply(fsm.EventHeard)
	case voice.KindBack:
		if c.index > 0 {
			c.enter(ctx, c.index-1, "voice")
			return
		}
		c.finish(ctx, OutcomeExited, nil)
	case voice.KindRepeat:
		c.reread(ctx)
	case voice.KindField, voice.KindChoice:
		if err := c.setValue(ctx, c.field, cmd.Value, SourceVoice); err != nil {
			c.logger.Warn("voice value rejected", "field", c.field, "error", err)
			_ = c.apply(fsm.EventHeard)
		}
	}
}

// setValue is the shared voice/manual edit path: store the value and start
// (or restart) the advance timer.
func (c *Controller) setValue(ctx context.Context, key, value string, source Source) error {
	if _, err := c.store.Set(key, value); err != nil {
		return err
	}

	c.supersede()
	c.field = key
	_ = c.apply(fsm.EventEdit)
	c.sink.FieldChanged(key, c.store.Get(key), source)
	c.metrics.FieldEdited(ctx, string(source))
	c.indicator.CueHeard(ctx)

	delay := c.cfg.TextAdvance
	if c.current().Kind == catalog.KindSingleChoice {
		delay = c.cfg.ChoiceAdvance
	}
	gen := c.gen
	c.advanceDue = c.clock.Now().Add(delay)
	c.advanceTimer = c.clock.AfterFunc(delay, func() {
		c.mailbox.post(func(ctx context.Context) { c.onAdvance(ctx, gen) })
	})
	c.logger.Debug("field set", "field", key, "source", source, "advance_in", delay)
	return nil
}

func (c *Controller) onAdvance(ctx context.Context, gen uint64) {
	if c.stale(ctx, gen, fsm.StateAwaitingAdvance, "advance") {
		return
	}
	c.advanceTimer = nil
	c.advanceDue = time.Time{}
	c.metrics.AutoAdvanced(ctx, c.index)

	if c.index+1 < c.catalog.Len() {
		c.enter(ctx, c.index+1, "auto")
		return
	}
	_ = c.apply(fsm.EventHold)
}

func (c *Controller) finish(ctx context.Context, outcome Outcome, err error) {
	if c.finished {
		return
	}
	c.supersede()
	if outcome == OutcomeSubmitted {
		_ = c.apply(fsm.EventSubmitted)
	} else {
		_ = c.apply(fsm.EventExit)
	}
	c.finished = true

	c.result.Outcome = outcome
	c.result.Section = c.index
	c.result.Form = c.store.Snapshot()
	c.result.Err = err
	c.result.FinishedAt = c.clock.Now()

	hideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 800*time.Millisecond)
	defer cancel()
	c.indicator.Hide(hideCtx)

	c.logger.Info("session finished",
		"outcome", outcome,
		"section", c.index,
		"filled", c.result.Form.Filled(),
		"duration_ms", c.result.FinishedAt.Sub(c.result.StartedAt).Milliseconds(),
	)
	c.sink.Finished(c.result)
}

// targetField is the first unset field of section, else its first field.
func targetField(section catalog.Section, store *form.Store) string {
	for _, key := range section.Fields {
		if !store.Get(key).IsSet() {
			return key
		}
	}
	return section.Fields[0]
}
