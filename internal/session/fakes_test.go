package session

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbright/meddoc/internal/catalog"
	"github.com/rbright/meddoc/internal/form"
	"github.com/rbright/meddoc/internal/fsm"
	"github.com/rbright/meddoc/internal/voice"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and fires due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeOutput struct {
	mu           sync.Mutex
	calls        []string
	spoken       []string
	pending      func()
	autoComplete bool
}

func (f *fakeOutput) Speak(text string, done func()) {
	f.mu.Lock()
	f.calls = append(f.calls, "speak:"+text)
	f.spoken = append(f.spoken, text)
	f.pending = done
	auto := f.autoComplete
	f.mu.Unlock()
	if auto {
		done()
	}
}

func (f *fakeOutput) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	f.pending = nil
}

func (f *fakeOutput) Speaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

// complete finishes the current utterance.
func (f *fakeOutput) complete() {
	f.mu.Lock()
	done := f.pending
	f.pending = nil
	f.mu.Unlock()
	if done != nil {
		done()
	}
}

// current returns the completion callback of the utterance in flight.
func (f *fakeOutput) current() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeOutput) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func (f *fakeOutput) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeInput struct {
	mu        sync.Mutex
	supported bool
	listening bool
	pending   func(Recognition)
	starts    atomic.Int32
	stops     atomic.Int32
}

func (f *fakeInput) Supported() bool { return f.supported }

func (f *fakeInput) Start(done func(Recognition)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listening {
		return
	}
	f.starts.Add(1)
	f.listening = true
	f.pending = done
}

func (f *fakeInput) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops.Add(1)
	f.listening = false
	f.pending = nil
}

func (f *fakeInput) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

// hear delivers a recognition result; empty text means nothing was heard.
func (f *fakeInput) hear(text string) {
	f.mu.Lock()
	done := f.pending
	f.pending = nil
	f.listening = false
	f.mu.Unlock()
	if done != nil {
		done(Recognition{Text: text, OK: text != ""})
	}
}

type fakeAuth struct {
	user User
	ok   bool
}

func (f fakeAuth) CurrentUser(context.Context) (User, bool) { return f.user, f.ok }

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []Submission
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, s Submission) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
	if f.err != nil {
		return Receipt{}, f.err
	}
	return Receipt{DocumentID: "doc-1", Collection: s.Collection}, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeIndicator struct {
	prompts   atomic.Int32
	listening atomic.Int32
	heard     atomic.Int32
	complete  atomic.Int32
	cancels   atomic.Int32
	errors    atomic.Int32
	hides     atomic.Int32
}

func (f *fakeIndicator) ShowPrompt(context.Context, string) { f.prompts.Add(1) }
func (f *fakeIndicator) ShowListening(context.Context)      { f.listening.Add(1) }
func (f *fakeIndicator) ShowError(context.Context, string)  { f.errors.Add(1) }
func (f *fakeIndicator) CueHeard(context.Context)           { f.heard.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context)        { f.complete.Add(1) }
func (f *fakeIndicator) CueCancel(context.Context)          { f.cancels.Add(1) }
func (f *fakeIndicator) Hide(context.Context)               { f.hides.Add(1) }

type recordingSink struct {
	mu       sync.Mutex
	entered  []int
	states   []fsm.State
	fields   map[string]Source
	heard    []voice.Command
	finished []Result
}

func (s *recordingSink) SectionEntered(section catalog.Section, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entered = append(s.entered, section.Index)
}

func (s *recordingSink) StateChanged(state fsm.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *recordingSink) FieldChanged(key string, _ form.Value, source Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields == nil {
		s.fields = map[string]Source{}
	}
	s.fields[key] = source
}

func (s *recordingSink) Recognized(_ string, cmd voice.Command, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heard = append(s.heard, cmd)
}

func (s *recordingSink) Finished(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, r)
}

func (s *recordingSink) enteredSections() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.entered...)
}

// harness runs a controller over the two-section name/confirm catalog.
type harness struct {
	t         *testing.T
	ctrl      *Controller
	clock     *fakeClock
	out       *fakeOutput
	in        *fakeInput
	submitter *fakeSubmitter
	indicator *fakeIndicator
	sink      *recordingSink
	cancel    context.CancelFunc
	results   chan Result
}

func twoStepCatalog() *catalog.Catalog {
	return catalog.MustNew([]catalog.Spec{
		{Title: "Name", Prompt: "What is your name?", Fields: []string{"name"}},
		{
			Title:   "Confirm",
			Prompt:  "Is everything correct?",
			Fields:  []string{"confirm"},
			Kind:    catalog.KindSingleChoice,
			Choices: []string{"Yes", "No"},
		},
	})
}

type harnessOption func(*Dependencies, *fakeInput)

func withoutVoiceInput() harnessOption {
	return func(_ *Dependencies, in *fakeInput) { in.supported = false }
}

func signedIn(email string) harnessOption {
	return func(d *Dependencies, _ *fakeInput) {
		d.Auth = fakeAuth{user: User{Email: email, Token: "tok"}, ok: true}
	}
}

func withDeps(fn func(*Dependencies)) harnessOption {
	return func(d *Dependencies, _ *fakeInput) { fn(d) }
}

func startHarness(t *testing.T, cat *catalog.Catalog, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		clock:     newFakeClock(),
		out:       &fakeOutput{},
		in:        &fakeInput{supported: true},
		submitter: &fakeSubmitter{},
		indicator: &fakeIndicator{},
		sink:      &recordingSink{},
		results:   make(chan Result, 1),
	}
	deps := Dependencies{
		Output:    h.out,
		Submitter: h.submitter,
		Sink:      h.sink,
		Indicator: h.indicator,
		Clock:     h.clock,
	}
	for _, opt := range opts {
		opt(&deps, h.in)
	}
	deps.Input = h.in

	h.ctrl = NewController(cat, deps, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.results <- h.ctrl.Run(ctx) }()

	h.waitFor(func(s Status) bool { return s.State == fsm.StateSpeaking && s.Section == 0 })
	return h
}

func (h *harness) waitFor(cond func(Status) bool) Status {
	h.t.Helper()
	var last Status
	ok := assert.Eventually(h.t, func() bool {
		last = h.ctrl.Status()
		return cond(last)
	}, 2*time.Second, time.Millisecond)
	if !ok {
		h.t.Fatalf("condition not reached; last status: state=%s section=%d", last.State, last.Section)
	}
	return last
}

func (h *harness) waitState(state fsm.State, section int) Status {
	h.t.Helper()
	return h.waitFor(func(s Status) bool { return s.State == state && s.Section == section })
}

// flush waits until every callback posted so far has been handled.
func (h *harness) flush() {
	h.t.Helper()
	require.NoError(h.t, h.ctrl.call(context.Background(), func(context.Context) error { return nil }))
}

// listen drives the current section from Speaking to Listening.
func (h *harness) listen(section int) {
	h.t.Helper()
	h.waitState(fsm.StateSpeaking, section)
	h.out.complete()
	h.waitState(fsm.StateArmingInput, section)
	h.clock.Advance(DefaultConfig().ArmDelay)
	h.waitState(fsm.StateListening, section)
}

func (h *harness) result() Result {
	h.t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(2 * time.Second):
		h.t.Fatal("Run did not return")
		return Result{}
	}
}
