// Package jobs owns the set of in-flight and completed dubbing jobs and
// supervises one pipeline run per job.
package jobs

import (
	"time"

	"autodub/internal/pipeline"
)

// Spec describes the job to create.
type Spec struct {
	Source         string              `json:"source"`
	SourceLanguage string              `json:"source_language,omitempty"`
	TargetLanguage string              `json:"target_language"`
	CloneVoices    bool                `json:"clone_voices,omitempty"`
	Trim           *pipeline.TimeRange `json:"trim,omitempty"`
}

// Job is one dubbing job's record. Copies of it are handed out to
// callers; the registry holds the only mutable instance.
type Job struct {
	ID             string              `json:"id"`
	Source         string              `json:"source"`
	SourceLanguage string              `json:"source_language,omitempty"`
	TargetLanguage string              `json:"target_language"`
	CloneVoices    bool                `json:"clone_voices,omitempty"`
	Trim           *pipeline.TimeRange `json:"trim,omitempty"`

	Status   pipeline.Stage `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`

	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}
