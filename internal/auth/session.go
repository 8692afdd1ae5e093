package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/meddoc/internal/config"
	"github.com/rbright/meddoc/internal/session"
)

// TokenEnv overrides the token file when set.
const TokenEnv = "MEDDOC_TOKEN"

// TokenSession reports the operator named by the stored bearer token. The
// token is re-read on every call so signing in or out takes effect without
// restarting a session.
type TokenSession struct {
	path     string
	verifier *Verifier
	logger   *slog.Logger
	getenv   func(string) string
}

// NewTokenSession reads tokens from cfg.TokenFile, or from the token file
// in the config directory when none is configured.
func NewTokenSession(cfg config.AuthConfig, logger *slog.Logger) (*TokenSession, error) {
	path, err := TokenPath(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TokenSession{
		path:     path,
		verifier: NewVerifier(cfg.Secret, cfg.Issuer),
		logger:   logger,
		getenv:   os.Getenv,
	}, nil
}

// TokenPath resolves where the bearer token is stored.
func TokenPath(cfg config.AuthConfig) (string, error) {
	if p := strings.TrimSpace(cfg.TokenFile); p != "" {
		return p, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token"), nil
}

func (s *TokenSession) Path() string { return s.path }

// Token returns the raw bearer token, preferring the environment.
func (s *TokenSession) Token() (string, error) {
	if tok := strings.TrimSpace(s.getenv(TokenEnv)); tok != "" {
		return tok, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// CurrentUser implements session.Authenticator.
func (s *TokenSession) CurrentUser(context.Context) (session.User, bool) {
	raw, err := s.Token()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("read token failed", "path", s.path, "error", err)
		}
		return session.User{}, false
	}

	claims, err := s.verifier.Verify(raw)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return session.User{}, false
	}
	return session.User{Email: claims.Email, Token: raw}, true
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
