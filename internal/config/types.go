// Package config resolves, parses, validates, and defaults meddoc configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Catalog     CatalogConfig
	Speech      SpeechConfig
	Recognition RecognitionConfig
	Audio       AudioConfig
	Timing      TimingConfig
	Voice       VoiceConfig
	Store       StoreConfig
	Auth        AuthConfig
	Indicator   IndicatorConfig
	Server      ServerConfig
}

// CatalogConfig points at an optional YAML catalog; empty uses the built-in one.
type CatalogConfig struct {
	Path string
}

// SpeechConfig drives the prompt synthesizer.
type SpeechConfig struct {
	Enable  bool
	Command CommandConfig
	Voice   string
	Pitch   float64
	Rate    float64
}

// RecognitionConfig points at the streaming recognizer service.
type RecognitionConfig struct {
	Enable        bool
	Endpoint      string
	LanguageCode  string
	PhraseLimitMS int
	DialTimeoutMS int
}

func (r RecognitionConfig) PhraseLimit() time.Duration {
	return time.Duration(r.PhraseLimitMS) * time.Millisecond
}

func (r RecognitionConfig) DialTimeout() time.Duration {
	return time.Duration(r.DialTimeoutMS) * time.Millisecond
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// TimingConfig holds controller delays in milliseconds.
type TimingConfig struct {
	ArmDelayMS      int
	TextAdvanceMS   int
	ChoiceAdvanceMS int
}

func (t TimingConfig) ArmDelay() time.Duration {
	return time.Duration(t.ArmDelayMS) * time.Millisecond
}

func (t TimingConfig) TextAdvance() time.Duration {
	return time.Duration(t.TextAdvanceMS) * time.Millisecond
}

func (t TimingConfig) ChoiceAdvance() time.Duration {
	return time.Duration(t.ChoiceAdvanceMS) * time.Millisecond
}

// VoiceConfig tunes answer matching.
type VoiceConfig struct {
	PhoneticChoices   bool
	PhoneticThreshold float64
}

// StoreConfig points at the document store.
type StoreConfig struct {
	Endpoint   string
	Collection string
	TimeoutMS  int
}

func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// AuthConfig locates the operator's bearer token. Secret, when set, is the
// HS256 key used to verify and mint tokens.
type AuthConfig struct {
	TokenFile string
	Secret    string
	Issuer    string
	TokenTTL  time.Duration
}

// IndicatorConfig controls audio cues and desktop notifications.
type IndicatorConfig struct {
	Enable         bool
	SoundEnable    bool
	DesktopAppName string
	ErrorTimeoutMS int
}

// ServerConfig configures `meddoc serve`.
type ServerConfig struct {
	Listen      string
	DatabaseURL string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
