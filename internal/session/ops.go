package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rbright/meddoc/internal/fsm"
	"github.com/rbright/meddoc/internal/ipc"
)

func (c *Controller) requireActive() error {
	if !fsm.Active(c.state) {
		return fmt.Errorf("%w (state %s)", ErrNotActive, c.state)
	}
	return nil
}

// Next moves to the following section, staying on the last one.
func (c *Controller) Next(ctx context.Context) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		c.enter(loopCtx, min(c.index+1, c.catalog.Len()-1), "manual")
		return nil
	})
}

// Previous moves back one section; from section 0 it exits the session.
func (c *Controller) Previous(ctx context.Context) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if c.index == 0 {
			c.finish(loopCtx, OutcomeExited, nil)
			return nil
		}
		c.enter(loopCtx, c.index-1, "manual")
		return nil
	})
}

// GoTo jumps to section i, clamped to the catalog. Negative indices exit.
func (c *Controller) GoTo(ctx context.Context, i int) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if i < 0 {
			c.finish(loopCtx, OutcomeExited, nil)
			return nil
		}
		c.enter(loopCtx, min(i, c.catalog.Len()-1), "manual")
		return nil
	})
}

// Reread speaks the current prompt again. A pending advance is cancelled.
func (c *Controller) Reread(ctx context.Context) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if c.state == fsm.StateListening {
			return ErrListening
		}
		c.reread(loopCtx)
		return nil
	})
}

// Listen starts a fresh recognition cycle for the current field, cutting
// the prompt short if it is still being spoken.
func (c *Controller) Listen(ctx context.Context) error {
	return c.call(ctx, func(context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if !c.voiceIn {
			return ErrInputUnsupported
		}
		switch c.state {
		case fsm.StateArmingInput, fsm.StateListening:
			return nil
		case fsm.StateSpeaking, fsm.StateAwaitingInput:
			c.supersede()
			c.arm()
			return nil
		default:
			return fmt.Errorf("cannot listen while %s", c.state)
		}
	})
}

// SetField applies a typed value to a field of the current section. It takes
// the same path as a spoken answer, including the advance timer.
func (c *Controller) SetField(ctx context.Context, key, value string) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if !c.current().Has(key) {
			return fmt.Errorf("%w: %q", ErrFieldNotInSection, key)
		}
		return c.setValue(loopCtx, key, value, SourceManual)
	})
}

// Answer fills the field the session is currently asking for, as a typed
// reply to the prompt.
func (c *Controller) Answer(ctx context.Context, text string) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		return c.setValue(loopCtx, c.field, text, SourceManual)
	})
}

// ClearField unsets a field without touching navigation. Clearing a field
// of the current section cancels a pending advance and makes that field
// the target again.
func (c *Controller) ClearField(ctx context.Context, key string) error {
	return c.call(ctx, func(context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if _, err := c.store.Clear(key); err != nil {
			return err
		}
		if c.current().Has(key) {
			c.field = key
			if c.state == fsm.StateAwaitingAdvance {
				c.supersede()
				_ = c.apply(fsm.EventHold)
			}
		}
		c.sink.FieldChanged(key, c.store.Get(key), SourceManual)
		return nil
	})
}

// Exit abandons the session.
func (c *Controller) Exit(ctx context.Context) error {
	return c.call(ctx, func(loopCtx context.Context) error {
		c.finish(loopCtx, OutcomeExited, nil)
		return nil
	})
}

// Submit hands the form to the Submitter. It is refused off the last
// section, and refused without contacting the Submitter when nobody is
// signed in. On failure the session stays on the last section with the
// form intact.
func (c *Controller) Submit(ctx context.Context) (Receipt, error) {
	var receipt Receipt
	err := c.call(ctx, func(loopCtx context.Context) error {
		if err := c.requireActive(); err != nil {
			return err
		}
		if c.index != c.catalog.Len()-1 {
			return ErrNotLastSection
		}

		user, ok := c.auth.CurrentUser(ctx)
		if !ok {
			c.metrics.Submitted(loopCtx, "unauthenticated")
			c.indicator.ShowError(loopCtx, "Sign in before submitting")
			c.logger.Warn("submission refused", "reason", "not signed in")
			return ErrNotAuthenticated
		}

		c.supersede()
		_ = c.apply(fsm.EventSubmit)
		c.publish()

		sub := Submission{
			SessionID:   c.id,
			Collection:  c.cfg.Collection,
			User:        user,
			Form:        c.store.Snapshot(),
			SubmittedAt: c.clock.Now(),
		}
		r, err := c.submitter.Submit(ctx, sub)
		if err != nil {
			_ = c.apply(fsm.EventSubmitFailed)
			c.metrics.Submitted(loopCtx, "error")
			c.indicator.ShowError(loopCtx, "Submission failed")
			c.logger.Error("submission failed", "collection", sub.Collection, "error", err)

			var subErr *SubmissionError
			if errors.As(err, &subErr) {
				return subErr
			}
			return &SubmissionError{Message: err.Error(), Err: err}
		}

		receipt = r
		c.result.Receipt = r
		c.metrics.Submitted(loopCtx, "ok")
		c.indicator.CueComplete(loopCtx)
		c.logger.Info("form submitted", "collection", r.Collection, "document", r.DocumentID, "user", user.Email)
		c.finish(loopCtx, OutcomeSubmitted, nil)
		return nil
	})
	return receipt, err
}

// Handle serves IPC commands for the running session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var (
		err     error
		message string
	)

	switch req.Command {
	case "status":
		message = c.Status().Prompt
	case "next":
		err = c.Next(ctx)
	case "back":
		err = c.Previous(ctx)
	case "repeat":
		err = c.Reread(ctx)
	case "listen":
		err = c.Listen(ctx)
	case "goto":
		if len(req.Args) != 1 {
			err = errors.New("goto requires a section number")
			break
		}
		n, convErr := strconv.Atoi(req.Args[0])
		if convErr != nil {
			err = fmt.Errorf("invalid section %q", req.Args[0])
			break
		}
		err = c.GoTo(ctx, n)
	case "set":
		if len(req.Args) < 2 {
			err = errors.New("set requires KEY VALUE")
			break
		}
		err = c.SetField(ctx, req.Args[0], strings.Join(req.Args[1:], " "))
	case "answer":
		if len(req.Args) == 0 {
			err = errors.New("answer requires a value")
			break
		}
		err = c.Answer(ctx, strings.Join(req.Args, " "))
	case "clear":
		if len(req.Args) != 1 {
			err = errors.New("clear requires KEY")
			break
		}
		err = c.ClearField(ctx, req.Args[0])
	case "submit":
		var r Receipt
		r, err = c.Submit(ctx)
		if err == nil {
			message = "submitted " + r.DocumentID
		}
	case "exit":
		err = c.Exit(ctx)
	default:
		err = fmt.Errorf("unknown command: %s", req.Command)
	}

	status := c.Status()
	resp := ipc.Response{
		OK:      err == nil,
		State:   string(status.State),
		Section: status.Section,
		Total:   status.Total,
		Field:   status.Field,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	} else if resp.Message == "" {
		resp.Message = req.Command
	}
	return resp
}
