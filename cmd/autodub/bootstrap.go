package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"autodub/internal/config"
	"autodub/internal/jobs"
	"autodub/internal/logging"
	"autodub/internal/media"
	"autodub/internal/notifications"
	"autodub/internal/pipeline"
	"autodub/internal/resultcache"
	"autodub/internal/services/deepgram"
	"autodub/internal/services/demucs"
	"autodub/internal/services/elevenlabs"
	"autodub/internal/services/openai"
	"autodub/internal/services/ytdlp"
)

// runtime bundles everything a job-running command needs.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *jobs.Registry
	history  *jobs.History
}

// buildRuntime wires the providers, cache, pipeline, and registry from
// configuration. The caller closes history when done.
func buildRuntime(cfg *config.Config, logToFile bool) (*runtime, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateProviders(); err != nil {
		return nil, err
	}

	outputs := []string{"stdout"}
	if logToFile {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "autodub.log"))
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	cache := resultcache.New(cfg.Paths.CacheDir, logger)
	processor := media.NewProcessor(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)
	voices := elevenlabs.NewClient(cfg.ElevenLabs.BaseURL, cfg.ElevenLabs.APIKey, cfg.ElevenLabs.Model, nil, logger)

	pipe := pipeline.New(cfg, pipeline.Collaborators{
		Downloader:  ytdlp.NewDownloader("yt-dlp", logger),
		Transcriber: deepgram.NewClient(cfg.Deepgram.BaseURL, cfg.Deepgram.APIKey, cfg.Deepgram.Model, nil, logger),
		Translator:  openai.NewTranslator(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, nil, logger),
		Synthesizer: voices,
		VoiceCloner: voices,
		Separator:   demucs.NewSeparator("demucs", "htdemucs", logger),
		Audio:       processor,
	}, cache, logger)

	history, err := jobs.OpenHistory(cfg.Paths.LogDir)
	if err != nil {
		return nil, err
	}

	notifier := notifications.NewService(cfg, logger)
	registry := jobs.NewRegistry(cfg, pipe, history, notifier, logger)

	return &runtime{cfg: cfg, logger: logger, registry: registry, history: history}, nil
}
