package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rbright/meddoc/internal/audio"
	"github.com/rbright/meddoc/internal/auth"
	"github.com/rbright/meddoc/internal/config"
	"github.com/rbright/meddoc/internal/docstore"
)

func (r Runner) commandSections(cfg config.Config) int {
	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	for _, section := range cat.Sections() {
		line := fmt.Sprintf("%2d  %-32s  %s", section.Index, section.Title, strings.Join(section.Fields, ","))
		if len(section.Choices) > 0 {
			line += "  [" + strings.Join(section.Choices, "|") + "]"
		}
		fmt.Fprintln(r.Stdout, line)
	}
	return 0
}

// commandServe runs the document service until ctx ends. Without a
// database URL, documents live in memory.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	var (
		backend docstore.Backend = docstore.NewMemoryBackend()
		kind                     = "memory"
	)
	if dsn := strings.TrimSpace(cfg.Server.DatabaseURL); dsn != "" {
		pg, err := docstore.OpenPostgres(ctx, dsn)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		defer pg.Close()
		backend, kind = pg, "postgres"
	}

	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	server, err := docstore.NewGRPCServer(docstore.NewServer(backend, logger), verifier)
	if errors.Is(err, auth.ErrNoSecret) {
		fmt.Fprintln(r.Stderr, "error: auth.secret must be set to serve documents")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: listen %s: %v\n", cfg.Server.Listen, err)
		return 1
	}

	logger.Info("document service listening", "addr", listener.Addr().String(), "backend", kind)
	fmt.Fprintf(r.Stdout, "serving documents on %s (%s backend)\n", listener.Addr(), kind)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	select {
	case err := <-serveErr:
		fmt.Fprintf(r.Stderr, "error: document service: %v\n", err)
		return 1
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		server.Stop()
	}
	logger.Info("document service stopped")
	return 0
}

func (r Runner) commandToken(cfg config.Config, email string) int {
	issuer, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer)
	if errors.Is(err, auth.ErrNoSecret) {
		fmt.Fprintln(r.Stderr, "error: auth.secret must be set to mint tokens")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	token, err := issuer.Mint(email, cfg.Auth.TokenTTL)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	path, err := auth.TokenPath(cfg.Auth)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := auth.SaveToken(path, token); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "signed in as %s until %s (token saved to %s)\n",
		strings.TrimSpace(email), time.Now().Add(cfg.Auth.TokenTTL).Format(time.RFC3339), path)
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		mark := " "
		if device.Default {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			mark, device.ID, device.Description, device.State, yesNo(device.Available), yesNo(device.Muted))
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
