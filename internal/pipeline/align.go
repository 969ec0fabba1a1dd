package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"autodub/internal/logging"
	"autodub/internal/transcript"
)

// PlanSpeedChain decomposes a speed factor into a sequence of per-call
// multipliers, each within [minRatio, maxRatio]. The product of the chain
// equals the requested factor: extreme corrections repeatedly apply the
// boundary multiplier and finish with the in-range remainder.
func PlanSpeedChain(factor, minRatio, maxRatio float64) []float64 {
	if factor <= 0 {
		return nil
	}

	var chain []float64
	remaining := factor
	for remaining > maxRatio {
		chain = append(chain, maxRatio)
		remaining /= maxRatio
	}
	for remaining < minRatio {
		chain = append(chain, minRatio)
		remaining /= minRatio
	}
	// Floating point division can leave the remainder a hair outside the
	// range; clamp instead of emitting an invalid step.
	if remaining > maxRatio {
		remaining = maxRatio
	}
	if remaining < minRatio {
		remaining = minRatio
	}
	if math.Abs(remaining-1) > 1e-9 {
		chain = append(chain, remaining)
	}
	return chain
}

// alignerPolicy carries the timing-correction knobs.
type alignerPolicy struct {
	tolerance     float64
	minSpeedRatio float64
	maxSpeedRatio float64
	minGapSeconds float64
}

// aligner fits synthesized clips to their source time windows and
// assembles them into a single dubbed vocal track.
type aligner struct {
	audio  AudioProcessor
	policy alignerPolicy
	logger *slog.Logger
}

func newAligner(audio AudioProcessor, policy alignerPolicy, logger *slog.Logger) *aligner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &aligner{audio: audio, policy: policy, logger: logger}
}

// fitClip speed-corrects one synthesized clip to its target window and
// returns the path of the corrected clip. Failures fall back to the
// unadjusted clip; only the caller decides whether a later primitive
// error is fatal.
func (a *aligner) fitClip(ctx context.Context, u transcript.Utterance, workDir string, index int) string {
	target := u.Duration()
	if target <= 0 {
		return u.AudioPath
	}

	actual, err := a.audio.Duration(ctx, u.AudioPath)
	if err != nil {
		logging.WarnWithContext(a.logger, "could not probe clip duration", "speed_correction_failed",
			logging.Int("utterance", index),
			logging.String(logging.FieldImpact, "clip plays at its synthesized speed"),
			logging.Error(err))
		return u.AudioPath
	}
	if actual <= 0 {
		return u.AudioPath
	}

	factor := actual / target
	if math.Abs(factor-1) <= a.policy.tolerance {
		return u.AudioPath
	}

	chain := PlanSpeedChain(factor, a.policy.minSpeedRatio, a.policy.maxSpeedRatio)
	current := u.AudioPath
	for step, speed := range chain {
		next := filepath.Join(workDir, fmt.Sprintf("aligned-%d-%d.wav", index, step))
		if err := a.audio.AdjustSpeed(ctx, current, next, speed); err != nil {
			logging.WarnWithContext(a.logger, "speed correction failed", "speed_correction_failed",
				logging.Int("utterance", index),
				logging.Float64("factor", factor),
				logging.String(logging.FieldImpact, "clip plays at its synthesized speed"),
				logging.Error(err))
			return u.AudioPath
		}
		current = next
	}
	return current
}

// assemble concatenates corrected clips in start-time order, filling
// positive inter-utterance gaps with silence. Utterances without audio are
// dropped; they contribute a gap, not an error.
func (a *aligner) assemble(ctx context.Context, utterances []transcript.Utterance, workDir, outPath string) error {
	withAudio := make([]transcript.Utterance, 0, len(utterances))
	for _, u := range utterances {
		if u.AudioPath == "" {
			continue
		}
		withAudio = append(withAudio, u)
	}
	transcript.SortByStart(withAudio)

	var clips []string
	cursor := 0.0
	for i, u := range withAudio {
		gap := u.Start - cursor
		if gap >= a.policy.minGapSeconds {
			silence := filepath.Join(workDir, fmt.Sprintf("gap-%d.wav", i))
			if err := a.audio.GenerateSilence(ctx, silence, gap); err != nil {
				return err
			}
			clips = append(clips, silence)
		}
		clips = append(clips, a.fitClip(ctx, u, workDir, i))
		cursor = u.End
	}

	if len(clips) == 0 {
		// Every utterance was dropped; the dubbed vocal track is pure
		// silence spanning the last utterance's window.
		span := a.policy.minGapSeconds
		for _, u := range utterances {
			span = math.Max(span, u.End)
		}
		return a.audio.GenerateSilence(ctx, outPath, span)
	}
	return a.audio.Concatenate(ctx, clips, outPath)
}
