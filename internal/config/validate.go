package config

import (
	"fmt"
	"strings"

	"autodub/internal/services"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Deepgram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Deepgram.BaseURL), "/")
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	c.ElevenLabs.BaseURL = strings.TrimRight(strings.TrimSpace(c.ElevenLabs.BaseURL), "/")

	normalized := make(map[string][]string, len(c.Dubbing.VoicePools))
	for lang, pool := range c.Dubbing.VoicePools {
		normalized[strings.ToLower(strings.TrimSpace(lang))] = pool
	}
	c.Dubbing.VoicePools = normalized

	return nil
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		problems = append(problems, "paths.work_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		problems = append(problems, "paths.api_bind must not be empty")
	}

	d := c.Dubbing
	if d.SpeedTolerance < 0 || d.SpeedTolerance >= 1 {
		problems = append(problems, "dubbing.speed_tolerance must be in [0, 1)")
	}
	if d.MinSpeedRatio <= 0 || d.MinSpeedRatio >= 1 {
		problems = append(problems, "dubbing.min_speed_ratio must be in (0, 1)")
	}
	if d.MaxSpeedRatio <= 1 {
		problems = append(problems, "dubbing.max_speed_ratio must be greater than 1")
	}
	if d.MinGapSeconds < 0 {
		problems = append(problems, "dubbing.min_gap_seconds must not be negative")
	}
	if d.VocalsVolume < 0 || d.BackgroundVolume < 0 {
		problems = append(problems, "dubbing mix volumes must not be negative")
	}
	if d.TranslationBatchSize < 1 {
		problems = append(problems, "dubbing.translation_batch_size must be at least 1")
	}
	if d.TranslationWorkers < 1 {
		problems = append(problems, "dubbing.translation_workers must be at least 1")
	}
	if d.SpeakerSampleMinSeconds <= 0 {
		problems = append(problems, "dubbing.speaker_sample_min_seconds must be positive")
	}
	if d.SpeakerSampleMaxSeconds < d.SpeakerSampleMinSeconds {
		problems = append(problems, "dubbing.speaker_sample_max_seconds must be at least the minimum")
	}
	if strings.TrimSpace(d.DefaultVoice) == "" {
		problems = append(problems, "dubbing.default_voice must not be empty")
	}

	if c.Notifications.RequestTimeout < 1 {
		problems = append(problems, "notifications.request_timeout must be at least 1 second")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		problems = append(problems, "logging.format must be console or json")
	}

	if len(problems) > 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")), nil)
	}
	return nil
}

// ValidateProviders checks that the API keys needed to run jobs are present.
// It is separate from Validate so that read-only commands work without keys.
func (c *Config) ValidateProviders() error {
	var missing []string
	if strings.TrimSpace(c.Deepgram.APIKey) == "" {
		missing = append(missing, "deepgram.api_key")
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		missing = append(missing, "openai.api_key")
	}
	if strings.TrimSpace(c.ElevenLabs.APIKey) == "" {
		missing = append(missing, "elevenlabs.api_key")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate-providers",
			fmt.Sprintf("missing provider credentials: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}
