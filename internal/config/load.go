package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures the resolved config path, parsed values, and warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A missing file yields defaults plus a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		warnings, verr := Validate(cfg)
		if verr != nil {
			return Loaded{}, verr
		}
		warnings = append([]Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}, warnings...)
		return Loaded{Path: path, Config: cfg, Warnings: warnings}, nil
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}
