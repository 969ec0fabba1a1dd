// Package ytdlp downloads source videos with the yt-dlp command line tool.
package ytdlp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"autodub/internal/logging"
	"autodub/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

type outputRunner func(ctx context.Context, name string, args ...string) (string, error)

// Downloader fetches videos from URLs yt-dlp understands.
type Downloader struct {
	binary    string
	logger    *slog.Logger
	run       commandRunner
	runOutput outputRunner
}

// NewDownloader creates a Downloader using the given yt-dlp binary.
func NewDownloader(binary string, logger *slog.Logger) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		binary:    binary,
		logger:    logging.NewComponentLogger(logger, "ytdlp"),
		run:       defaultCommandRunner,
		runOutput: defaultOutputRunner,
	}
}

// WithCommandRunner overrides process execution, for tests.
func (d *Downloader) WithCommandRunner(run commandRunner, runOutput outputRunner) {
	if run != nil {
		d.run = run
	}
	if runOutput != nil {
		d.runOutput = runOutput
	}
}

// Download fetches the video at url into destDir and returns the path of
// the downloaded MP4.
func (d *Downloader) Download(ctx context.Context, url, destDir string) (string, error) {
	outPath := filepath.Join(destDir, "source.mp4")
	args := downloadArgs(url, outPath)

	logging.WithContext(ctx, d.logger).Info("downloading source video", logging.String("url", url))
	if err := d.run(ctx, d.binary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "yt-dlp",
			fmt.Sprintf("download %s", url), err)
	}
	return outPath, nil
}

// Title asks yt-dlp for the video's title without downloading it. A failure
// is not fatal to a job; callers fall back to the job id.
func (d *Downloader) Title(ctx context.Context, url string) (string, error) {
	out, err := d.runOutput(ctx, d.binary, "--no-playlist", "--get-title", url)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "probe title", err)
	}
	return strings.TrimSpace(out), nil
}

func downloadArgs(url, outPath string) []string {
	return []string{
		"--no-playlist",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", outPath,
		url,
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func defaultOutputRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
