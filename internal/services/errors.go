package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks failures of subprocess tools (ffmpeg, yt-dlp, demucs).
	ErrExternalTool = errors.New("external tool error")
	// ErrProvider marks failures of remote provider APIs.
	ErrProvider = errors.New("provider error")
	// ErrValidation marks bad or missing input detected before calling out.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing record or artifact.
	ErrNotFound = errors.New("not found")
	// ErrDegraded marks failures that have a defined fallback and must not
	// abort the pipeline (a single clone, translation, synthesis, or speed
	// correction going wrong).
	ErrDegraded = errors.New("degraded")
	// ErrTransient marks failures that carry no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsDegraded reports whether an error is tagged as degradable: the stage
// applied (or will apply) a fallback and the pipeline should keep going.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrDegraded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
