package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"autodub/internal/fingerprint"
	"autodub/internal/logging"
	"autodub/internal/resultcache"
	"autodub/internal/transcript"
)

// minSampleSegmentSeconds drops utterances too short to contribute useful
// voice-cloning material.
const minSampleSegmentSeconds = 0.5

type clonePolicy struct {
	sampleMinSeconds float64
	sampleMaxSeconds float64
}

// cloner builds per-speaker voice clones from the separated vocals track.
// Sample extraction and the cloning calls are separate phases so the
// pipeline can report them as distinct checkpoints.
type cloner struct {
	provider VoiceCloner
	audio    AudioProcessor
	cache    *resultcache.Cache
	policy   clonePolicy
	logger   *slog.Logger
}

func newCloner(provider VoiceCloner, audio AudioProcessor, cache *resultcache.Cache, policy clonePolicy, logger *slog.Logger) *cloner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &cloner{provider: provider, audio: audio, cache: cache, policy: policy, logger: logger}
}

// planSpeakerSample chooses the utterance windows that make up a speaker's
// cloning sample: longest utterances first, skipping fragments, until the
// minimum total duration is reached or the maximum would be exceeded.
func planSpeakerSample(utterances []transcript.Utterance, speaker string, minSeconds, maxSeconds float64) []transcript.Utterance {
	var candidates []transcript.Utterance
	for _, u := range utterances {
		if u.Speaker != speaker || u.Duration() < minSampleSegmentSeconds {
			continue
		}
		candidates = append(candidates, u)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Duration() > candidates[j].Duration()
	})

	var picked []transcript.Utterance
	total := 0.0
	for _, u := range candidates {
		if total >= minSeconds {
			break
		}
		if total+u.Duration() > maxSeconds {
			continue
		}
		picked = append(picked, u)
		total += u.Duration()
	}
	transcript.SortByStart(picked)
	return picked
}

// buildSamples extracts one concatenated sample file per speaker from the
// vocals track. Speakers with a cached clone are skipped; speakers whose
// sample cannot be built are logged and absent from the result.
func (c *cloner) buildSamples(ctx context.Context, utterances []transcript.Utterance, vocalsPath, workDir, sourceKey string) map[string]string {
	samples := make(map[string]string)
	for _, speaker := range transcript.Speakers(utterances) {
		if _, ok := c.cachedVoice(sourceKey, speaker); ok {
			continue
		}
		path, err := c.buildSample(ctx, utterances, speaker, vocalsPath, workDir)
		if err != nil {
			logging.WarnWithContext(c.logger, "could not build speaker sample", "speaker_sample_failed",
				logging.String(logging.FieldSpeaker, speaker),
				logging.String(logging.FieldImpact, "speaker falls back to a stock voice"),
				logging.Error(err))
			continue
		}
		samples[speaker] = path
	}
	return samples
}

func (c *cloner) buildSample(ctx context.Context, utterances []transcript.Utterance, speaker, vocalsPath, workDir string) (string, error) {
	sample := planSpeakerSample(utterances, speaker, c.policy.sampleMinSeconds, c.policy.sampleMaxSeconds)
	if len(sample) == 0 {
		return "", fmt.Errorf("speaker %s has no usable audio", speaker)
	}

	segments := make([]string, 0, len(sample))
	for i, u := range sample {
		segment := filepath.Join(workDir, fmt.Sprintf("sample-%s-%d.wav", speaker, i))
		if err := c.audio.ExtractSegment(ctx, vocalsPath, segment, u.Start, u.Duration()); err != nil {
			return "", err
		}
		segments = append(segments, segment)
	}

	samplePath := filepath.Join(workDir, fmt.Sprintf("sample-%s.wav", speaker))
	if err := c.audio.Concatenate(ctx, segments, samplePath); err != nil {
		return "", err
	}
	return samplePath, nil
}

// cloneSpeakers turns speaker samples into cloned voice ids. Cached clones
// for the same source are reused. A speaker whose cloning call fails is
// absent from the result and keeps its stock-pool voice.
func (c *cloner) cloneSpeakers(ctx context.Context, utterances []transcript.Utterance, samples map[string]string, sourceKey string) map[string]string {
	cloned := make(map[string]string)
	for _, speaker := range transcript.Speakers(utterances) {
		if voiceID, ok := c.cachedVoice(sourceKey, speaker); ok {
			cloned[speaker] = voiceID
			continue
		}
		samplePath, ok := samples[speaker]
		if !ok {
			continue
		}
		voiceID, err := c.provider.CloneVoice(ctx, "autodub-speaker-"+speaker, samplePath)
		if err != nil {
			logging.WarnWithContext(c.logger, "voice clone failed", "voice_clone_failed",
				logging.String(logging.FieldSpeaker, speaker),
				logging.String(logging.FieldImpact, "speaker falls back to a stock voice"),
				logging.Error(err))
			continue
		}
		cloned[speaker] = voiceID
		c.storeVoice(sourceKey, speaker, voiceID)
	}
	return cloned
}

type cachedVoice struct {
	VoiceID string `json:"voice_id"`
}

func (c *cloner) cachedVoice(sourceKey, speaker string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	key, err := voiceKey(sourceKey, speaker)
	if err != nil {
		return "", false
	}
	var entry cachedVoice
	if !c.cache.Get(resultcache.CategoryVoice, key, &entry) || entry.VoiceID == "" {
		return "", false
	}
	return entry.VoiceID, true
}

func (c *cloner) storeVoice(sourceKey, speaker, voiceID string) {
	if c.cache == nil {
		return
	}
	key, err := voiceKey(sourceKey, speaker)
	if err != nil {
		return
	}
	if err := c.cache.Put(resultcache.CategoryVoice, key, cachedVoice{VoiceID: voiceID}); err != nil {
		c.logger.Warn("could not cache cloned voice", logging.Error(err))
	}
}

func voiceKey(sourceKey, speaker string) (string, error) {
	return fingerprint.Derive(map[string]any{
		"source":  sourceKey,
		"speaker": speaker,
	})
}
