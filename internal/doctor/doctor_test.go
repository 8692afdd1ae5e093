package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/meddoc/internal/config"
	"github.com/rbright/meddoc/internal/session"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckConfigReportsDefaultsAndWarnings(t *testing.T) {
	check := checkConfig(config.Loaded{
		Path:     "/tmp/meddoc/config.jsonc",
		Warnings: []config.Warning{{Message: "a"}, {Message: "b"}},
	})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")
	require.Contains(t, check.Message, "2 warning(s)")
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "speech.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-synth"), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-synth", "-v", "en-us"}, "speech.command")
	require.True(t, check.Pass)
	require.Equal(t, "speech.command", check.Name)
	require.Contains(t, check.Message, "speech.command command is available")
}

func TestCheckEndpoint(t *testing.T) {
	ok := checkEndpoint(context.Background(), "store", "127.0.0.1:1", func(context.Context) error { return nil })
	require.True(t, ok.Pass)
	require.Equal(t, "ready at 127.0.0.1:1", ok.Message)

	failed := checkEndpoint(context.Background(), "store", "127.0.0.1:1", func(context.Context) error {
		return errors.New("connection refused")
	})
	require.False(t, failed.Pass)
	require.Contains(t, failed.Message, "unreachable: connection refused")

	empty := checkEndpoint(context.Background(), "recognition", " ", func(context.Context) error {
		t.Fatal("probe called for empty endpoint")
		return nil
	})
	require.False(t, empty.Pass)
}

type fakeAuth struct {
	user session.User
	ok   bool
}

func (f fakeAuth) CurrentUser(context.Context) (session.User, bool) { return f.user, f.ok }

func TestCheckSignedIn(t *testing.T) {
	check := checkSignedIn(context.Background(), fakeAuth{user: session.User{Email: "nurse@example.com"}, ok: true}, "/tmp/token")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "nurse@example.com")

	check = checkSignedIn(context.Background(), fakeAuth{}, "/tmp/token")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "/tmp/token")
}

func TestRunChecksKeepsOrder(t *testing.T) {
	report := runChecks(context.Background(), []func(context.Context) Check{
		func(context.Context) Check { return Check{Name: "a", Pass: true} },
		func(context.Context) Check { return Check{Name: "b"} },
		func(context.Context) Check { return Check{Name: "c", Pass: true} },
	})
	require.Equal(t, []string{"a", "b", "c"}, []string{report.Checks[0].Name, report.Checks[1].Name, report.Checks[2].Name})
	require.False(t, report.OK())
}

func TestRunWithServicesDisabledChecksStoreAndToken(t *testing.T) {
	t.Setenv("MEDDOC_TOKEN", "")
	cfg := config.Default()
	cfg.Speech.Enable = false
	cfg.Recognition.Enable = false
	cfg.Indicator.Enable = false
	cfg.Store.Endpoint = "127.0.0.1:1"
	cfg.Store.TimeoutMS = 100
	cfg.Auth.TokenFile = filepath.Join(t.TempDir(), "token")

	report := Run(context.Background(), config.Loaded{Path: "/tmp/cfg.jsonc", Config: cfg, Exists: true})
	require.Len(t, report.Checks, 3)
	require.Equal(t, "config", report.Checks[0].Name)
	require.Equal(t, "store", report.Checks[1].Name)
	require.False(t, report.Checks[1].Pass)
	require.Equal(t, "auth.token", report.Checks[2].Name)
	require.False(t, report.Checks[2].Pass)
	require.False(t, report.OK())
}
