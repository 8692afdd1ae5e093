package config

import "time"

// DefaultCollection is the document collection intake forms are written to.
const DefaultCollection = "Offices/traneyes/forms"

// Default returns the configuration used when no file is present.
func Default() Config {
	synth := "espeak-ng"

	return Config{
		Speech: SpeechConfig{
			Enable:  true,
			Command: CommandConfig{Raw: synth, Argv: mustParseArgv(synth)},
			Voice:   "en-us",
			Pitch:   1.0,
			Rate:    0.9,
		},
		Recognition: RecognitionConfig{
			Enable:        true,
			Endpoint:      "127.0.0.1:50051",
			LanguageCode:  "en-US",
			PhraseLimitMS: 5000,
			DialTimeoutMS: 1500,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Timing: TimingConfig{
			ArmDelayMS:      500,
			TextAdvanceMS:   2000,
			ChoiceAdvanceMS: 1500,
		},
		Voice: VoiceConfig{
			PhoneticChoices:   false,
			PhoneticThreshold: 0.8,
		},
		Store: StoreConfig{
			Endpoint:   "127.0.0.1:50061",
			Collection: DefaultCollection,
			TimeoutMS:  5000,
		},
		Auth: AuthConfig{
			Issuer:   "meddoc",
			TokenTTL: 12 * time.Hour,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			SoundEnable:    true,
			DesktopAppName: "meddoc",
			ErrorTimeoutMS: 1600,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:50061",
		},
	}
}
