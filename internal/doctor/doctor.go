// Package doctor runs readiness diagnostics for config, the synthesizer, the
// recognizer and document services, the sign-in token, and audio input.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/meddoc/internal/asr"
	"github.com/rbright/meddoc/internal/audio"
	"github.com/rbright/meddoc/internal/auth"
	"github.com/rbright/meddoc/internal/config"
	"github.com/rbright/meddoc/internal/docstore"
	"github.com/rbright/meddoc/internal/session"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

const probeTimeout = 2 * time.Second

// Run executes every applicable check. Independent probes run concurrently;
// the report keeps a stable order.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []func(context.Context) Check{
		func(context.Context) Check { return checkConfig(loaded) },
	}

	if cfg.Speech.Enable {
		checks = append(checks, func(context.Context) Check {
			return checkCommand(cfg.Speech.Command.Argv, "speech.command")
		})
	}
	if cfg.Recognition.Enable {
		client := asr.NewClient(asr.ClientConfig{
			Endpoint:    cfg.Recognition.Endpoint,
			DialTimeout: cfg.Recognition.DialTimeout(),
		})
		checks = append(checks, func(ctx context.Context) Check {
			return checkEndpoint(ctx, "recognition", cfg.Recognition.Endpoint, client.Probe)
		})
		checks = append(checks, func(ctx context.Context) Check {
			return checkAudioSelection(ctx, cfg.Audio)
		})
	}

	store := docstore.NewClient(docstore.ClientConfig{Endpoint: cfg.Store.Endpoint, Timeout: cfg.Store.Timeout()})
	checks = append(checks, func(ctx context.Context) Check {
		return checkEndpoint(ctx, "store", cfg.Store.Endpoint, store.Probe)
	})

	tokens, err := auth.NewTokenSession(cfg.Auth, nil)
	checks = append(checks, func(ctx context.Context) Check {
		if err != nil {
			return Check{Name: "auth.token", Message: err.Error()}
		}
		return checkSignedIn(ctx, tokens, tokens.Path())
	})

	if cfg.Indicator.Enable {
		checks = append(checks, func(context.Context) Check {
			return checkBinary("busctl", "desktop notifications")
		})
	}

	return runChecks(ctx, checks)
}

func runChecks(ctx context.Context, checks []func(context.Context) Check) Report {
	results := make([]Check, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			results[i] = check(checkCtx)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Checks: results}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(", %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkCommand validates that argv names a runnable binary.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], name+" command is available")
	check.Name = name
	return check
}

func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkEndpoint(ctx context.Context, name, endpoint string, probe func(context.Context) error) Check {
	if strings.TrimSpace(endpoint) == "" {
		return Check{Name: name, Message: "endpoint is empty"}
	}
	if err := probe(ctx); err != nil {
		return Check{Name: name, Message: fmt.Sprintf("%s unreachable: %v", endpoint, err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

func checkSignedIn(ctx context.Context, a session.Authenticator, path string) Check {
	user, ok := a.CurrentUser(ctx)
	if !ok {
		return Check{Name: "auth.token", Message: fmt.Sprintf("no valid token at %s (run `meddoc token EMAIL`)", path)}
	}
	return Check{Name: "auth.token", Pass: true, Message: "signed in as " + user.Email}
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
