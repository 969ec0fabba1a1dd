package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
work_dir = "` + filepath.Join(dir, "work") + `"
api_bind = "127.0.0.1:9999"

[dubbing]
speed_tolerance = 0.05
translation_workers = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api_bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Dubbing.SpeedTolerance != 0.05 {
		t.Fatalf("speed_tolerance = %v", cfg.Dubbing.SpeedTolerance)
	}
	if cfg.Dubbing.TranslationWorkers != 2 {
		t.Fatalf("translation_workers = %d", cfg.Dubbing.TranslationWorkers)
	}
	// Unset values keep their defaults.
	if cfg.Dubbing.TranslationBatchSize != 5 {
		t.Fatalf("translation_batch_size = %d", cfg.Dubbing.TranslationBatchSize)
	}
}

func TestLoadFillsKeysFromEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	t.Setenv("OPENAI_API_KEY", "oa-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")

	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Deepgram.APIKey != "dg-test" || cfg.OpenAI.APIKey != "oa-test" || cfg.ElevenLabs.APIKey != "el-test" {
		t.Fatalf("env keys not applied: %+v", cfg.Deepgram)
	}
	if err := cfg.ValidateProviders(); err != nil {
		t.Fatalf("providers should validate: %v", err)
	}
}

func TestValidateRejectsBadRatios(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Dubbing.MinSpeedRatio = 1.5
	cfg.Dubbing.MaxSpeedRatio = 0.9
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "min_speed_ratio") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVoicePoolFallback(t *testing.T) {
	cfg := Default()
	if pool := cfg.VoicePool("ES"); len(pool) != 3 {
		t.Fatalf("expected es pool, got %v", pool)
	}
	pool := cfg.VoicePool("sw")
	if len(pool) != 1 || pool[0] != cfg.Dubbing.DefaultVoice {
		t.Fatalf("expected default voice fallback, got %v", pool)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/videos")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "videos") {
		t.Fatalf("expandPath = %q", got)
	}
}
