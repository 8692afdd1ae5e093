// Package app maps parsed commands onto meddoc's subsystems.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/meddoc/internal/cli"
	"github.com/rbright/meddoc/internal/config"
	"github.com/rbright/meddoc/internal/doctor"
	"github.com/rbright/meddoc/internal/ipc"
	"github.com/rbright/meddoc/internal/logging"
	"github.com/rbright/meddoc/internal/version"
)

const binaryName = "meddoc"

// Runner executes one CLI invocation. Stdin feeds the `run` console.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute returns the process exit code: 0 on success, 1 on runtime
// failure, 2 on usage errors.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}
	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if parsed.Command != cli.CommandStatus {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"args", len(parsed.Args),
		"config", loaded.Path,
		"log", logRuntime.Path,
	)

	if parsed.Command.Forwarded() {
		return r.forward(ctx, parsed, loaded.Config)
	}

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, loaded.Config, logger, filepath.Join(filepath.Dir(logRuntime.Path), "metrics.jsonl"))
	case cli.CommandSections:
		return r.commandSections(loaded.Config)
	case cli.CommandServe:
		return r.commandServe(ctx, loaded.Config, logger)
	case cli.CommandToken:
		return r.commandToken(loaded.Config, parsed.Args[0])
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// forward sends a session command to the running `meddoc run`. Status
// reports "idle" when nothing is running; every other command fails.
func (r Runner) forward(ctx context.Context, parsed cli.Parsed, cfg config.Config) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	timeout := ipc.DefaultTimeout
	if parsed.Command == cli.CommandSubmit {
		timeout = max(timeout, cfg.Store.Timeout()+time.Second)
	}

	req := ipc.Request{Command: string(parsed.Command), Args: parsed.Args}
	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintln(r.Stderr, "error: no active meddoc session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if parsed.Command == cli.CommandStatus {
		fmt.Fprintln(r.Stdout, formatStatus(resp))
		return 0
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func formatStatus(resp ipc.Response) string {
	if resp.State == "" {
		return "idle"
	}
	parts := []string{resp.State}
	if resp.Total > 0 {
		parts = append(parts, fmt.Sprintf("section %d/%d", resp.Section+1, resp.Total))
	}
	if resp.Field != "" {
		parts = append(parts, "field "+resp.Field)
	}
	line := strings.Join(parts, " ")
	if resp.Message != "" {
		line += "\n" + resp.Message
	}
	return line
}

// tryForward reports handled=false when no session owns the socket.
func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Client{Path: socketPath, Timeout: timeout}.Do(ctx, req)
	switch {
	case err == nil && resp.OK:
		return resp, true, nil
	case err == nil:
		return resp, true, errors.New(resp.Error)
	case ipc.NotRunning(err):
		return ipc.Response{}, false, nil
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
}
