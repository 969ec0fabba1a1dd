package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Deepgram contains configuration for the transcription provider.
type Deepgram struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// OpenAI contains configuration for the translation provider.
type OpenAI struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// ElevenLabs contains configuration for speech synthesis and voice cloning.
type ElevenLabs struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// Dubbing contains the timing-alignment and voice policy knobs.
type Dubbing struct {
	// SpeedTolerance is the relative deviation of synthesized duration from
	// the target window below which no speed correction is applied.
	SpeedTolerance float64 `toml:"speed_tolerance"`
	// MinSpeedRatio and MaxSpeedRatio bound a single pitch-preserving
	// speed-change call; corrections outside the range are chained.
	MinSpeedRatio float64 `toml:"min_speed_ratio"`
	MaxSpeedRatio float64 `toml:"max_speed_ratio"`
	// MinGapSeconds is the smallest inter-utterance gap worth filling with
	// silence during concatenation.
	MinGapSeconds float64 `toml:"min_gap_seconds"`

	VocalsVolume     float64 `toml:"vocals_volume"`
	BackgroundVolume float64 `toml:"background_volume"`

	TranslationBatchSize int `toml:"translation_batch_size"`
	TranslationWorkers   int `toml:"translation_workers"`

	SpeakerSampleMinSeconds float64 `toml:"speaker_sample_min_seconds"`
	SpeakerSampleMaxSeconds float64 `toml:"speaker_sample_max_seconds"`

	// ConversationHeuristic relabels utterances with alternating speakers
	// when diarization collapses to a single speaker over more than three
	// utterances. It is a guess with no confidence signal; disable it for
	// monologue-heavy sources.
	ConversationHeuristic bool `toml:"conversation_heuristic"`

	// DefaultVoice is used when a job has a single speaker or a language
	// has no configured pool.
	DefaultVoice string `toml:"default_voice"`
	// VoicePools maps a target language code to its stock synthesis voices.
	VoicePools map[string][]string `toml:"voice_pools"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow contains job lifecycle settings.
type Workflow struct {
	// KeepTempFiles skips the best-effort cleanup of per-job scratch files.
	KeepTempFiles bool `toml:"keep_temp_files"`
}

// Config encapsulates all configuration values for autodub.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Deepgram      Deepgram      `toml:"deepgram"`
	OpenAI        OpenAI        `toml:"openai"`
	ElevenLabs    ElevenLabs    `toml:"elevenlabs"`
	Dubbing       Dubbing       `toml:"dubbing"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Workflow      Workflow      `toml:"workflow"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/autodub/config.toml")
}

// Load locates, parses, and validates a configuration file. Provider API
// keys left empty in the file are filled from the environment (a .env file
// next to the working directory is honored). The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	// Best-effort; absence of a .env file is not an error.
	_ = godotenv.Load()
	cfg.fillFromEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) fillFromEnv() {
	if strings.TrimSpace(c.Deepgram.APIKey) == "" {
		c.Deepgram.APIKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if strings.TrimSpace(c.ElevenLabs.APIKey) == "" {
		c.ElevenLabs.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("autodub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobWorkDir returns the per-job scratch directory under WorkDir.
func (c *Config) JobWorkDir(jobID string) string {
	return filepath.Join(c.Paths.WorkDir, jobID)
}

// FFmpegBinary returns the ffmpeg executable name used for audio processing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// VoicePool returns the stock voice pool for a target language, falling back
// to the default voice when the language has no configured pool.
func (c *Config) VoicePool(language string) []string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if pool, ok := c.Dubbing.VoicePools[lang]; ok && len(pool) > 0 {
		cp := make([]string, len(pool))
		copy(cp, pool)
		return cp
	}
	if c.Dubbing.DefaultVoice != "" {
		return []string{c.Dubbing.DefaultVoice}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
