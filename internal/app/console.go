package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rbright/meddoc/internal/catalog"
	"github.com/rbright/meddoc/internal/form"
	"github.com/rbright/meddoc/internal/fsm"
	"github.com/rbright/meddoc/internal/ipc"
	"github.com/rbright/meddoc/internal/session"
	"github.com/rbright/meddoc/internal/voice"
)

const consoleHelp = `Type an answer and press enter to fill the highlighted field, or:
  :next  :back  :repeat  :listen  :status
  :goto N  :set KEY VALUE  :clear KEY  :submit  :quit
`

// runConsole reads operator lines until in is exhausted or ctx ends. Lines
// go through the same command path as the control socket.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, h ipc.Handler) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == ":help" {
			fmt.Fprint(out, consoleHelp)
			continue
		}

		req, ok, err := parseConsoleLine(line)
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}
		if !ok {
			continue
		}

		resp := h.Handle(ctx, req)
		switch {
		case !resp.OK:
			fmt.Fprintf(out, "! %s\n", resp.Error)
		case req.Command == "status":
			fmt.Fprintln(out, formatStatus(resp))
		case req.Command == "submit":
			fmt.Fprintln(out, resp.Message)
		}
	}
}

var consoleCommands = map[string]string{
	"next":   "next",
	"back":   "back",
	"repeat": "repeat",
	"listen": "listen",
	"status": "status",
	"goto":   "goto",
	"set":    "set",
	"clear":  "clear",
	"submit": "submit",
	"quit":   "exit",
	"exit":   "exit",
}

// parseConsoleLine turns ":cmd args" into a request. Any other non-blank
// line answers the field being asked for. ok is false for blank lines.
func parseConsoleLine(line string) (ipc.Request, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ipc.Request{}, false, nil
	}

	if !strings.HasPrefix(line, ":") {
		return ipc.Request{Command: "answer", Args: []string{line}}, true, nil
	}

	body := strings.TrimSpace(strings.TrimPrefix(line, ":"))
	words := strings.Fields(body)
	if len(words) == 0 {
		return ipc.Request{}, false, errors.New("empty command (try :help)")
	}
	command, known := consoleCommands[strings.ToLower(words[0])]
	if !known {
		return ipc.Request{}, false, fmt.Errorf("unknown command :%s (try :help)", words[0])
	}

	args := words[1:]
	if command == "set" && len(args) >= 2 {
		// Keep the value's internal spacing as typed.
		rest := strings.TrimSpace(body[len(words[0]):])
		value := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		args = []string{args[0], value}
	}
	return ipc.Request{Command: command, Args: args}, true, nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSyncWriter(w io.Writer) *syncWriter { return &syncWriter{w: w} }

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// terminalSink renders session events for the operator.
type terminalSink struct {
	out io.Writer
}

var _ session.EventSink = terminalSink{}

func newTerminalSink(out io.Writer) terminalSink { return terminalSink{out: out} }

func (s terminalSink) SectionEntered(section catalog.Section, total int) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%d/%d] %s\n  %s\n", section.Index+1, total, section.Title, section.Prompt)
	if len(section.Choices) > 0 {
		fmt.Fprintf(&b, "  choices: %s\n", strings.Join(section.Choices, " | "))
	}
	_, _ = io.WriteString(s.out, b.String())
}

func (s terminalSink) StateChanged(state fsm.State) {
	if state == fsm.StateListening {
		fmt.Fprintln(s.out, "  (listening…)")
	}
}

func (s terminalSink) FieldChanged(key string, value form.Value, source session.Source) {
	if !value.IsSet() {
		fmt.Fprintf(s.out, "  %s cleared\n", key)
		return
	}
	fmt.Fprintf(s.out, "  %s = %q (%s)\n", key, value.String(), source)
}

func (s terminalSink) Recognized(text string, cmd voice.Command, usable bool) {
	if !usable {
		fmt.Fprintf(s.out, "  heard %q (no usable answer)\n", text)
		return
	}
	fmt.Fprintf(s.out, "  heard %q: %s\n", text, cmd)
}

func (terminalSink) Finished(session.Result) {}
