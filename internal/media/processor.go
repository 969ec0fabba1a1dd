// Package media wraps ffmpeg and ffprobe for the audio operations the
// dubbing pipeline needs. All invocations go through an injectable command
// runner so tests can assert on arguments without spawning processes.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"autodub/internal/logging"
	"autodub/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

type outputRunner func(ctx context.Context, name string, args ...string) (string, error)

// Processor executes audio operations with ffmpeg.
type Processor struct {
	ffmpegBinary  string
	ffprobeBinary string
	logger        *slog.Logger
	run           commandRunner
	runOutput     outputRunner
}

// NewProcessor creates a Processor using the given binaries.
func NewProcessor(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "media"),
		run:           defaultCommandRunner,
		runOutput:     defaultOutputRunner,
	}
}

// WithCommandRunner overrides process execution, for tests.
func (p *Processor) WithCommandRunner(run commandRunner, runOutput outputRunner) {
	if run != nil {
		p.run = run
	}
	if runOutput != nil {
		p.runOutput = runOutput
	}
}

// ExtractAudio demuxes the full audio track of a video into 44.1kHz stereo
// 16-bit PCM, the working format for every later stage.
func (p *Processor) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	args := extractAudioArgs(videoPath, outPath)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "extract-audio", "ffmpeg failed", err)
	}
	return nil
}

// ExtractSegment copies a time window out of an audio file, re-encoded to
// the working PCM format.
func (p *Processor) ExtractSegment(ctx context.Context, inPath, outPath string, startSeconds, durationSeconds float64) error {
	args := extractSegmentArgs(inPath, outPath, startSeconds, durationSeconds)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "extract-segment", "ffmpeg failed", err)
	}
	return nil
}

// AdjustSpeed applies a single pitch-preserving speed change. The factor
// must lie within ffmpeg's single-pass atempo range; callers needing a
// larger correction chain multiple calls.
func (p *Processor) AdjustSpeed(ctx context.Context, inPath, outPath string, speed float64) error {
	if speed < 0.5 || speed > 2.0 {
		return services.Wrap(services.ErrValidation, "media", "adjust-speed",
			fmt.Sprintf("speed %.3f outside single-pass range [0.5, 2.0]", speed), nil)
	}
	args := atempoArgs(inPath, outPath, speed)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "adjust-speed", "ffmpeg failed", err)
	}
	return nil
}

// GenerateSilence writes a silent clip of the given duration in the
// working PCM format.
func (p *Processor) GenerateSilence(ctx context.Context, outPath string, durationSeconds float64) error {
	args := silenceArgs(outPath, durationSeconds)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "generate-silence", "ffmpeg failed", err)
	}
	return nil
}

// Concatenate joins clips in order into a single audio file. All inputs
// must share the working PCM format.
func (p *Processor) Concatenate(ctx context.Context, clipPaths []string, outPath string) error {
	if len(clipPaths) == 0 {
		return services.Wrap(services.ErrValidation, "media", "concatenate", "no clips to join", nil)
	}

	listPath := outPath + ".concat.txt"
	var list strings.Builder
	for _, clip := range clipPaths {
		fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(clip))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := concatArgs(listPath, outPath)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "concatenate", "ffmpeg failed", err)
	}
	return nil
}

// Mix overlays the dubbed vocal track on the background track at the given
// relative volumes, padding to the longer input.
func (p *Processor) Mix(ctx context.Context, vocalsPath, backgroundPath, outPath string, vocalsVolume, backgroundVolume float64) error {
	args := mixArgs(vocalsPath, backgroundPath, outPath, vocalsVolume, backgroundVolume)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "mix", "ffmpeg failed", err)
	}
	return nil
}

// Mux replaces the video's audio with the mixed track, copying the video
// stream and trimming to the shorter input.
func (p *Processor) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	args := muxArgs(videoPath, audioPath, outPath)
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "mux", "ffmpeg failed", err)
	}
	return nil
}

// TrimVideo cuts a time window out of a video without re-encoding.
func (p *Processor) TrimVideo(ctx context.Context, inPath, outPath string, startSeconds, endSeconds float64) error {
	if endSeconds <= startSeconds {
		return services.Wrap(services.ErrValidation, "media", "trim-video",
			fmt.Sprintf("empty trim window [%.3f, %.3f]", startSeconds, endSeconds), nil)
	}
	args := []string{
		"-y",
		"-ss", formatSeconds(startSeconds),
		"-to", formatSeconds(endSeconds),
		"-i", inPath,
		"-c", "copy",
		outPath,
	}
	if err := p.run(ctx, p.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "trim-video", "ffmpeg failed", err)
	}
	return nil
}

// Duration probes a media file's duration in seconds.
func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	out, err := p.runOutput(ctx, p.ffprobeBinary, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe-duration", "ffprobe failed", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe-duration",
			fmt.Sprintf("unparseable duration %q", strings.TrimSpace(out)), err)
	}
	return seconds, nil
}

func extractAudioArgs(videoPath, outPath string) []string {
	return []string{
		"-y", "-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		outPath,
	}
}

func extractSegmentArgs(inPath, outPath string, startSeconds, durationSeconds float64) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(startSeconds),
		"-t", formatSeconds(durationSeconds),
		"-i", inPath,
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		outPath,
	}
}

func atempoArgs(inPath, outPath string, speed float64) []string {
	return []string{
		"-y", "-i", inPath,
		"-filter:a", fmt.Sprintf("atempo=%s", formatSpeed(speed)),
		outPath,
	}
}

func silenceArgs(outPath string, durationSeconds float64) []string {
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", formatSeconds(durationSeconds),
		"-acodec", "pcm_s16le",
		outPath,
	}
}

func concatArgs(listPath, outPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
}

func mixArgs(vocalsPath, backgroundPath, outPath string, vocalsVolume, backgroundVolume float64) []string {
	filter := fmt.Sprintf(
		"[0:a]volume=%s[v];[1:a]volume=%s[b];[v][b]amix=inputs=2:duration=longest:dropout_transition=0",
		formatSpeed(vocalsVolume), formatSpeed(backgroundVolume))
	return []string{
		"-y",
		"-i", vocalsPath,
		"-i", backgroundPath,
		"-filter_complex", filter,
		"-acodec", "pcm_s16le",
		outPath,
	}
}

func muxArgs(videoPath, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outPath,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeConcatPath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), "'", `'\''`)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func defaultOutputRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
