package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type filePayload struct {
	Catalog     *catalogPayload     `json:"catalog"`
	Speech      *speechPayload      `json:"speech"`
	Recognition *recognitionPayload `json:"recognition"`
	Audio       *audioPayload       `json:"audio"`
	Timing      *timingPayload      `json:"timing"`
	Voice       *voicePayload       `json:"voice"`
	Store       *storePayload       `json:"store"`
	Auth        *authPayload        `json:"auth"`
	Indicator   *indicatorPayload   `json:"indicator"`
	Server      *serverPayload      `json:"server"`
}

type catalogPayload struct {
	Path *string `json:"path"`
}

type speechPayload struct {
	Enable  *bool    `json:"enable"`
	Command *string  `json:"command"`
	Voice   *string  `json:"voice"`
	Pitch   *float64 `json:"pitch"`
	Rate    *float64 `json:"rate"`
}

type recognitionPayload struct {
	Enable        *bool   `json:"enable"`
	Endpoint      *string `json:"endpoint"`
	LanguageCode  *string `json:"language_code"`
	PhraseLimitMS *int    `json:"phrase_limit_ms"`
	DialTimeoutMS *int    `json:"dial_timeout_ms"`
}

type audioPayload struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type timingPayload struct {
	ArmDelayMS      *int `json:"arm_delay_ms"`
	TextAdvanceMS   *int `json:"text_advance_ms"`
	ChoiceAdvanceMS *int `json:"choice_advance_ms"`
}

type voicePayload struct {
	PhoneticChoices   *bool    `json:"phonetic_choices"`
	PhoneticThreshold *float64 `json:"phonetic_threshold"`
}

type storePayload struct {
	Endpoint   *string `json:"endpoint"`
	Collection *string `json:"collection"`
	TimeoutMS  *int    `json:"timeout_ms"`
}

type authPayload struct {
	TokenFile *string `json:"token_file"`
	Secret    *string `json:"secret"`
	Issuer    *string `json:"issuer"`
	TokenTTL  *string `json:"token_ttl"`
}

type indicatorPayload struct {
	Enable         *bool   `json:"enable"`
	SoundEnable    *bool   `json:"sound_enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type serverPayload struct {
	Listen      *string `json:"listen"`
	DatabaseURL *string `json:"database_url"`
}

// Parse reads JSONC content over base. Blank content validates base as-is.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload filePayload
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (p filePayload) applyTo(cfg *Config) error {
	if p.Catalog != nil {
		setString(&cfg.Catalog.Path, p.Catalog.Path)
	}

	if s := p.Speech; s != nil {
		setValue(&cfg.Speech.Enable, s.Enable)
		setString(&cfg.Speech.Voice, s.Voice)
		setValue(&cfg.Speech.Pitch, s.Pitch)
		setValue(&cfg.Speech.Rate, s.Rate)
		if s.Command != nil {
			argv, err := parseArgv(*s.Command)
			if err != nil {
				return fmt.Errorf("invalid speech.command: %w", err)
			}
			cfg.Speech.Command = CommandConfig{Raw: *s.Command, Argv: argv}
		}
	}

	if r := p.Recognition; r != nil {
		setValue(&cfg.Recognition.Enable, r.Enable)
		setString(&cfg.Recognition.Endpoint, r.Endpoint)
		setString(&cfg.Recognition.LanguageCode, r.LanguageCode)
		setValue(&cfg.Recognition.PhraseLimitMS, r.PhraseLimitMS)
		setValue(&cfg.Recognition.DialTimeoutMS, r.DialTimeoutMS)
	}

	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if t := p.Timing; t != nil {
		setValue(&cfg.Timing.ArmDelayMS, t.ArmDelayMS)
		setValue(&cfg.Timing.TextAdvanceMS, t.TextAdvanceMS)
		setValue(&cfg.Timing.ChoiceAdvanceMS, t.ChoiceAdvanceMS)
	}

	if v := p.Voice; v != nil {
		setValue(&cfg.Voice.PhoneticChoices, v.PhoneticChoices)
		setValue(&cfg.Voice.PhoneticThreshold, v.PhoneticThreshold)
	}

	if s := p.Store; s != nil {
		setString(&cfg.Store.Endpoint, s.Endpoint)
		setString(&cfg.Store.Collection, s.Collection)
		setValue(&cfg.Store.TimeoutMS, s.TimeoutMS)
	}

	if a := p.Auth; a != nil {
		setString(&cfg.Auth.TokenFile, a.TokenFile)
		setString(&cfg.Auth.Secret, a.Secret)
		setString(&cfg.Auth.Issuer, a.Issuer)
		if a.TokenTTL != nil {
			ttl, err := time.ParseDuration(strings.TrimSpace(*a.TokenTTL))
			if err != nil {
				return fmt.Errorf("invalid auth.token_ttl: %w", err)
			}
			cfg.Auth.TokenTTL = ttl
		}
	}

	if i := p.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		setValue(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if s := p.Server; s != nil {
		setString(&cfg.Server.Listen, s.Listen)
		setString(&cfg.Server.DatabaseURL, s.DatabaseURL)
	}

	return nil
}
