package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	if cfg.Speech.Enable {
		if len(cfg.Speech.Command.Argv) == 0 {
			return nil, fmt.Errorf("speech.command must not be empty when speech.enable=true")
		}
		if cfg.Speech.Pitch <= 0 || cfg.Speech.Pitch > 2 {
			return nil, fmt.Errorf("speech.pitch must be in (0, 2]")
		}
		if cfg.Speech.Rate <= 0 || cfg.Speech.Rate > 3 {
			return nil, fmt.Errorf("speech.rate must be in (0, 3]")
		}
	}

	if cfg.Recognition.Enable {
		if strings.TrimSpace(cfg.Recognition.Endpoint) == "" {
			return nil, fmt.Errorf("recognition.endpoint must not be empty when recognition.enable=true")
		}
		if strings.TrimSpace(cfg.Recognition.LanguageCode) == "" {
			return nil, fmt.Errorf("recognition.language_code must not be empty")
		}
	}
	if cfg.Recognition.PhraseLimitMS <= 0 {
		return nil, fmt.Errorf("recognition.phrase_limit_ms must be > 0")
	}
	if cfg.Recognition.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("recognition.dial_timeout_ms must be > 0")
	}

	if cfg.Timing.ArmDelayMS <= 0 {
		return nil, fmt.Errorf("timing.arm_delay_ms must be > 0")
	}
	if cfg.Timing.TextAdvanceMS <= 0 {
		return nil, fmt.Errorf("timing.text_advance_ms must be > 0")
	}
	if cfg.Timing.ChoiceAdvanceMS <= 0 {
		return nil, fmt.Errorf("timing.choice_advance_ms must be > 0")
	}
	if cfg.Timing.ArmDelayMS >= min(cfg.Timing.TextAdvanceMS, cfg.Timing.ChoiceAdvanceMS) {
		warnings = append(warnings, Warning{Message: "timing.arm_delay_ms is not shorter than the advance delays; answers may advance before the microphone opens"})
	}

	if t := cfg.Voice.PhoneticThreshold; t <= 0 || t > 1 {
		return nil, fmt.Errorf("voice.phonetic_threshold must be in (0, 1]")
	}

	if strings.TrimSpace(cfg.Store.Endpoint) == "" {
		return nil, fmt.Errorf("store.endpoint must not be empty")
	}
	if err := ValidateCollection(cfg.Store.Collection); err != nil {
		return nil, fmt.Errorf("store.collection: %w", err)
	}
	if cfg.Store.TimeoutMS <= 0 {
		return nil, fmt.Errorf("store.timeout_ms must be > 0")
	}

	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("auth.token_ttl must be > 0")
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		warnings = append(warnings, Warning{Message: "auth.secret is empty; tokens are read without signature verification"})
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return nil, fmt.Errorf("server.listen must not be empty")
	}

	return warnings, nil
}

// ValidateCollection checks a document collection path: slash-separated,
// no empty segments, and an odd segment count so it names a collection
// rather than a document.
func ValidateCollection(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("collection path must not be empty")
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("collection path %q has an empty segment at position %d", path, i)
		}
	}
	if len(segments)%2 == 0 {
		return fmt.Errorf("collection path %q names a document, not a collection", path)
	}
	return nil
}
