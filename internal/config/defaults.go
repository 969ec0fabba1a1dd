package config

// Default provides sensible defaults for all settings.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   "~/.local/share/autodub/work",
			OutputDir: "~/.local/share/autodub/output",
			CacheDir:  "~/.local/share/autodub/cache",
			LogDir:    "~/.local/share/autodub/logs",
			APIBind:   "127.0.0.1:8723",
		},
		Deepgram: Deepgram{
			BaseURL: "https://api.deepgram.com",
			Model:   "nova-2",
		},
		OpenAI: OpenAI{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		ElevenLabs: ElevenLabs{
			BaseURL: "https://api.elevenlabs.io",
			Model:   "eleven_multilingual_v2",
		},
		Dubbing: Dubbing{
			SpeedTolerance:          0.01,
			MinSpeedRatio:           0.5,
			MaxSpeedRatio:           2.0,
			MinGapSeconds:           0.01,
			VocalsVolume:            1.0,
			BackgroundVolume:        0.7,
			TranslationBatchSize:    5,
			TranslationWorkers:      3,
			SpeakerSampleMinSeconds: 10,
			SpeakerSampleMaxSeconds: 60,
			ConversationHeuristic:   true,
			DefaultVoice:            "21m00Tcm4TlvDq8ikWAM",
			VoicePools: map[string][]string{
				"es": {"VR6AewLTigWG4xSOukaG", "EXAVITQu4vr4xnSDxMaL", "pNInz6obpgDQGcFmaJgB"},
				"fr": {"ThT5KcBeYPX3keUQqHPh", "XB0fDUnXU5powFXDhCwa"},
				"de": {"ErXwobaYiN019PkySvjV", "AZnzlk1XvdvUeBnXmlld"},
				"en": {"21m00Tcm4TlvDq8ikWAM", "yoZ06aMxZJJ28mfd3POQ", "TxGEqnHWrfWFTfGW9XjX"},
			},
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Workflow: Workflow{
			KeepTempFiles: false,
		},
	}
}
