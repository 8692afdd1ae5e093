package session

import (
	"context"
	"errors"
	"time"

	"github.com/rbright/meddoc/internal/catalog"
	"github.com/rbright/meddoc/internal/form"
	"github.com/rbright/meddoc/internal/fsm"
	"github.com/rbright/meddoc/internal/voice"
)

// SpeechOutput speaks section prompts.
//
// Speak cancels any utterance in flight, then starts text. done fires exactly
// once when the utterance ends, including when the device fails; it never
// fires for an utterance that was stopped or superseded. Stop is idempotent.
type SpeechOutput interface {
	Speak(text string, done func())
	Stop()
	Speaking() bool
}

// Recognition is the outcome of one listening cycle. OK is false when nothing
// usable was heard.
type Recognition struct {
	Text string
	OK   bool
}

// SpeechInput runs single-shot recognition.
//
// Start is a no-op while already listening. done fires exactly once per
// started cycle unless Stop cancels it first. Supported is consulted once,
// when the controller is built.
type SpeechInput interface {
	Supported() bool
	Start(done func(Recognition))
	Stop()
	Listening() bool
}

// User identifies the signed-in operator.
type User struct {
	Email string
	Token string
}

// Authenticator reports the signed-in user, if any.
type Authenticator interface {
	CurrentUser(context.Context) (User, bool)
}

// Submission is the document handed to the Submitter.
type Submission struct {
	SessionID   string
	Collection  string
	User        User
	Form        form.Snapshot
	SubmittedAt time.Time
}

// Receipt acknowledges a stored submission.
type Receipt struct {
	DocumentID string
	Collection string
}

// Submitter stores completed forms. Failures are reported, never retried.
type Submitter interface {
	Submit(context.Context, Submission) (Receipt, error)
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(context.Context, Submission) (Receipt, error)

func (f SubmitFunc) Submit(ctx context.Context, s Submission) (Receipt, error) {
	return f(ctx, s)
}

// Source tags where a field value came from.
type Source string

const (
	SourceVoice  Source = "voice"
	SourceManual Source = "manual"
)

// EventSink observes the session. Calls arrive on the controller goroutine
// and must not call back into the Controller.
type EventSink interface {
	SectionEntered(section catalog.Section, total int)
	StateChanged(fsm.State)
	FieldChanged(key string, value form.Value, source Source)
	Recognized(text string, cmd voice.Command, usable bool)
	Finished(Result)
}

// Indicator is the audible/visual feedback surface.
type Indicator interface {
	ShowPrompt(ctx context.Context, title string)
	ShowListening(context.Context)
	ShowError(context.Context, string)
	CueHeard(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// ErrNoSubmitter is returned by the fallback Submitter.
var ErrNoSubmitter = errors.New("no document store configured")

type silentOutput struct{}

func (silentOutput) Speak(_ string, done func()) {
	if done != nil {
		done()
	}
}
func (silentOutput) Stop()          {}
func (silentOutput) Speaking() bool { return false }

type noInput struct{}

func (noInput) Supported() bool         { return false }
func (noInput) Start(func(Recognition)) {}
func (noInput) Stop()                   {}
func (noInput) Listening() bool         { return false }

type signedOut struct{}

func (signedOut) CurrentUser(context.Context) (User, bool) { return User{}, false }

type noopSink struct{}

func (noopSink) SectionEntered(catalog.Section, int)     {}
func (noopSink) StateChanged(fsm.State)                  {}
func (noopSink) FieldChanged(string, form.Value, Source) {}
func (noopSink) Recognized(string, voice.Command, bool)  {}
func (noopSink) Finished(Result)                         {}

type noopIndicator struct{}

func (noopIndicator) ShowPrompt(context.Context, string) {}
func (noopIndicator) ShowListening(context.Context)      {}
func (noopIndicator) ShowError(context.Context, string)  {}
func (noopIndicator) CueHeard(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)        {}
func (noopIndicator) CueCancel(context.Context)          {}
func (noopIndicator) Hide(context.Context)               {}
