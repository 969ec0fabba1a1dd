// Package demucs separates an audio track into vocal and background stems
// using the demucs command line tool.
package demucs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"autodub/internal/logging"
	"autodub/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Separator runs two-stem source separation.
type Separator struct {
	binary string
	model  string
	logger *slog.Logger
	run    commandRunner
}

// NewSeparator creates a Separator for the given demucs binary and model.
func NewSeparator(binary, model string, logger *slog.Logger) *Separator {
	if binary == "" {
		binary = "demucs"
	}
	if model == "" {
		model = "htdemucs"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Separator{
		binary: binary,
		model:  model,
		logger: logging.NewComponentLogger(logger, "demucs"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner overrides process execution, for tests.
func (s *Separator) WithCommandRunner(run commandRunner) {
	if run != nil {
		s.run = run
	}
}

// Separate splits audioPath into a vocals stem and a background stem under
// outDir and returns both paths.
func (s *Separator) Separate(ctx context.Context, audioPath, outDir string) (vocals string, background string, err error) {
	args := []string{
		"--two-stems", "vocals",
		"-n", s.model,
		"-o", outDir,
		audioPath,
	}

	logging.WithContext(ctx, s.logger).Info("separating audio stems", logging.String("input", audioPath))
	if err := s.run(ctx, s.binary, args...); err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "separate-audio", "demucs", "separation failed", err)
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemDir := filepath.Join(outDir, s.model, stem)
	vocals = filepath.Join(stemDir, "vocals.wav")
	background = filepath.Join(stemDir, "no_vocals.wav")

	for _, path := range []string{vocals, background} {
		if _, err := os.Stat(path); err != nil {
			return "", "", services.Wrap(services.ErrExternalTool, "separate-audio", "demucs",
				fmt.Sprintf("expected stem %s missing", path), err)
		}
	}
	return vocals, background, nil
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
