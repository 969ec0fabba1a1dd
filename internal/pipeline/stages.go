package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autodub/internal/fingerprint"
	"autodub/internal/logging"
	"autodub/internal/resultcache"
	"autodub/internal/services"
	"autodub/internal/transcript"
)

func (p *Pipeline) runDownload(ctx context.Context, r *run) error {
	if err := os.MkdirAll(r.req.WorkDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "download", "workdir", "create job work directory", err)
	}

	if isURL(r.req.Source) {
		path, err := p.downloader.Download(ctx, r.req.Source, r.req.WorkDir)
		if err != nil {
			return err
		}
		r.videoPath = path
		if title, err := p.downloader.Title(ctx, r.req.Source); err == nil && title != "" {
			r.title = title
		} else {
			r.title = r.req.JobID
		}
		key, err := fingerprint.Derive(map[string]any{
			"source": r.req.Source,
			"trim":   trimKey(r.req.Trim),
		})
		if err != nil {
			return err
		}
		r.sourceKey = key
	} else {
		if _, err := os.Stat(r.req.Source); err != nil {
			return services.Wrap(services.ErrNotFound, "download", "local-source", "source file not found", err)
		}
		r.videoPath = r.req.Source
		r.title = strings.TrimSuffix(filepath.Base(r.req.Source), filepath.Ext(r.req.Source))
		// Local files have no stable URL; fall back to content identity.
		contentHash, err := fingerprint.File(r.req.Source)
		if err != nil {
			return err
		}
		key, err := fingerprint.Derive(map[string]any{
			"content": contentHash,
			"trim":    trimKey(r.req.Trim),
		})
		if err != nil {
			return err
		}
		r.sourceKey = key
	}

	if r.req.Trim != nil {
		trimmed := filepath.Join(r.req.WorkDir, "source-trimmed.mp4")
		if err := p.audio.TrimVideo(ctx, r.videoPath, trimmed, r.req.Trim.Start, r.req.Trim.End); err != nil {
			return err
		}
		r.videoPath = trimmed
	}
	return nil
}

func (p *Pipeline) runExtractAudio(ctx context.Context, r *run) error {
	r.audioPath = filepath.Join(r.req.WorkDir, "audio.wav")
	return p.audio.ExtractAudio(ctx, r.videoPath, r.audioPath)
}

func (p *Pipeline) runSeparate(ctx context.Context, r *run) error {
	vocals, background, err := p.separator.Separate(ctx, r.audioPath, filepath.Join(r.req.WorkDir, "stems"))
	if err != nil {
		return err
	}
	r.vocalsPath = vocals
	r.backgroundPath = background
	return nil
}

type cachedTranscript struct {
	Utterances []transcript.Utterance `json:"utterances"`
}

func (p *Pipeline) runTranscribe(ctx context.Context, r *run) error {
	key, err := fingerprint.Derive(map[string]any{
		"source":   r.sourceKey,
		"language": r.req.SourceLanguage,
	})
	if err != nil {
		return err
	}

	var utterances []transcript.Utterance
	var entry cachedTranscript
	if p.cache != nil && p.cache.Get(resultcache.CategoryTranscript, key, &entry) {
		r.logger.Info("transcript cache hit", logging.Int("utterances", len(entry.Utterances)))
		utterances = entry.Utterances
	} else {
		utterances, err = p.transcriber.Transcribe(ctx, r.vocalsPath, r.req.SourceLanguage)
		if err != nil {
			return err
		}
		utterances = transcript.NonEmpty(utterances)
		if p.cache != nil && len(utterances) > 0 {
			if err := p.cache.Put(resultcache.CategoryTranscript, key, cachedTranscript{Utterances: utterances}); err != nil {
				r.logger.Warn("could not cache transcript", logging.Error(err))
			}
		}
	}

	utterances = transcript.NonEmpty(utterances)
	if len(utterances) == 0 {
		return services.Wrap(services.ErrProvider, "transcribe", "diarization",
			"no speech segments detected in source audio", nil)
	}
	transcript.SortByStart(utterances)

	if p.cfg.Dubbing.ConversationHeuristic {
		relabeled, applied := transcript.ApplyConversationHeuristic(utterances)
		if applied {
			r.logger.Warn("single-speaker transcript relabeled as conversation",
				logging.String(logging.FieldEventType, "conversation_heuristic"),
				logging.Int("utterances", len(relabeled)))
			utterances = relabeled
		}
	}

	r.utterances = utterances
	return nil
}

func (p *Pipeline) runExtractSamples(ctx context.Context, r *run) error {
	c := p.newCloner(r)
	r.samples = c.buildSamples(ctx, r.utterances, r.vocalsPath, r.req.WorkDir, r.sourceKey)
	return nil
}

func (p *Pipeline) runCloneVoices(ctx context.Context, r *run) error {
	c := p.newCloner(r)
	r.cloned = c.cloneSpeakers(ctx, r.utterances, r.samples, r.sourceKey)

	missing := 0
	for speaker := range r.samples {
		if _, ok := r.cloned[speaker]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return services.Wrap(services.ErrDegraded, "clone-voices", "elevenlabs",
			fmt.Sprintf("%d speaker(s) fall back to stock voices", missing), nil)
	}
	return nil
}

func (p *Pipeline) newCloner(r *run) *cloner {
	return newCloner(p.voiceCloner, p.audio, p.cache, clonePolicy{
		sampleMinSeconds: p.cfg.Dubbing.SpeakerSampleMinSeconds,
		sampleMaxSeconds: p.cfg.Dubbing.SpeakerSampleMaxSeconds,
	}, r.logger)
}

func (p *Pipeline) runTranslate(ctx context.Context, r *run) error {
	t := newTranslator(p.translation, p.cache, translatePolicy{
		batchSize: p.cfg.Dubbing.TranslationBatchSize,
		workers:   p.cfg.Dubbing.TranslationWorkers,
	}, r.logger)
	translated, err := t.translateAll(ctx, r.utterances, r.req.SourceLanguage, r.req.TargetLanguage)
	r.utterances = translated
	return err
}

func (p *Pipeline) runSynthesize(ctx context.Context, r *run) error {
	r.voices = AssignVoices(r.utterances, p.cfg.VoicePool(r.req.TargetLanguage), p.cfg.Dubbing.DefaultVoice, r.cloned)

	silent := 0
	for i := range r.utterances {
		u := &r.utterances[i]
		text := u.Translated
		if text == "" {
			text = u.Text
		}

		raw := filepath.Join(r.req.WorkDir, fmt.Sprintf("tts-%d.mp3", i))
		if err := p.synthesizer.Synthesize(ctx, text, r.voices.VoiceFor(u.Speaker), raw); err != nil {
			logging.WarnWithContext(r.logger, "synthesis failed, utterance will be silent", "synthesis_failed",
				logging.Int("utterance", i),
				logging.String(logging.FieldSpeaker, u.Speaker),
				logging.String(logging.FieldImpact, "utterance slot filled with silence"),
				logging.Error(err))
			u.AudioPath = ""
			silent++
			continue
		}

		wav := filepath.Join(r.req.WorkDir, fmt.Sprintf("tts-%d.wav", i))
		if err := p.audio.ExtractAudio(ctx, raw, wav); err != nil {
			logging.WarnWithContext(r.logger, "clip conversion failed, utterance will be silent", "synthesis_failed",
				logging.Int("utterance", i),
				logging.String(logging.FieldImpact, "utterance slot filled with silence"),
				logging.Error(err))
			u.AudioPath = ""
			silent++
			continue
		}
		u.AudioPath = wav
	}

	if silent > 0 {
		return services.Wrap(services.ErrDegraded, "synthesize", "tts",
			fmt.Sprintf("%d of %d utterances fall back to silence", silent, len(r.utterances)), nil)
	}
	return nil
}

func (p *Pipeline) runAlign(ctx context.Context, r *run) error {
	a := newAligner(p.audio, alignerPolicy{
		tolerance:     p.cfg.Dubbing.SpeedTolerance,
		minSpeedRatio: p.cfg.Dubbing.MinSpeedRatio,
		maxSpeedRatio: p.cfg.Dubbing.MaxSpeedRatio,
		minGapSeconds: p.cfg.Dubbing.MinGapSeconds,
	}, r.logger)

	r.dubbedVocalsPath = filepath.Join(r.req.WorkDir, "dubbed-vocals.wav")
	return a.assemble(ctx, r.utterances, r.req.WorkDir, r.dubbedVocalsPath)
}

func (p *Pipeline) runMix(ctx context.Context, r *run) error {
	r.finalAudioPath = filepath.Join(r.req.WorkDir, "final-audio.wav")
	return p.audio.Mix(ctx, r.dubbedVocalsPath, r.backgroundPath, r.finalAudioPath,
		p.cfg.Dubbing.VocalsVolume, p.cfg.Dubbing.BackgroundVolume)
}

func (p *Pipeline) runMux(ctx context.Context, r *run) error {
	if err := os.MkdirAll(r.req.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "mux", "outdir", "create output directory", err)
	}
	r.outputPath = filepath.Join(r.req.OutputDir, r.req.JobID+".mp4")
	return p.audio.Mux(ctx, r.videoPath, r.finalAudioPath, r.outputPath)
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func trimKey(trim *TimeRange) string {
	if trim == nil {
		return ""
	}
	return fmt.Sprintf("%.3f-%.3f", trim.Start, trim.End)
}
