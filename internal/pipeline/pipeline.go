// Package pipeline sequences the dubbing stages for one job: acquisition,
// separation, transcription, optional voice cloning, translation,
// synthesis, timing alignment, mixing, and muxing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autodub/internal/config"
	"autodub/internal/logging"
	"autodub/internal/resultcache"
	"autodub/internal/services"
	"autodub/internal/transcript"
)

// Stage names one step of the dubbing pipeline. Stage values double as
// job status strings.
type Stage string

const (
	StageQueued                   Stage = "queued"
	StageDownloading              Stage = "downloading"
	StageExtractingAudio          Stage = "extracting-audio"
	StageSeparatingAudio          Stage = "separating-audio"
	StageTranscribing             Stage = "transcribing"
	StageExtractingSpeakerSamples Stage = "extracting-speaker-samples"
	StageCloningVoices            Stage = "cloning-voices"
	StageTranslating              Stage = "translating"
	StageSynthesizing             Stage = "synthesizing"
	StageAligning                 Stage = "aligning"
	StageMixing                   Stage = "mixing"
	StageMuxing                   Stage = "muxing"
	StageCompleted                Stage = "completed"
	StageFailed                   Stage = "failed"
)

// stageProgress fixes the checkpoint reported when a stage begins.
var stageProgress = map[Stage]int{
	StageQueued:                   0,
	StageDownloading:              10,
	StageExtractingAudio:          20,
	StageSeparatingAudio:          22,
	StageTranscribing:             30,
	StageExtractingSpeakerSamples: 35,
	StageCloningVoices:            38,
	StageTranslating:              45,
	StageSynthesizing:             60,
	StageAligning:                 75,
	StageMixing:                   85,
	StageMuxing:                   90,
	StageCompleted:                100,
}

// Progress returns the stage's fixed progress checkpoint.
func (s Stage) Progress() int {
	return stageProgress[s]
}

// Terminal reports whether the stage is a terminal state.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ProgressFunc receives stage-transition callbacks. Implementations must
// not block; the pipeline calls it inline between stages.
type ProgressFunc func(stage Stage, progress int, message string)

// TimeRange is an optional trim window applied to the source, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Request describes one dubbing job.
type Request struct {
	JobID          string
	Source         string
	SourceLanguage string
	TargetLanguage string
	CloneVoices    bool
	Trim           *TimeRange
	WorkDir        string
	OutputDir      string
}

// Result summarizes a completed job.
type Result struct {
	OutputPath   string
	Title        string
	Utterances   int
	Speakers     int
	ClonedVoices int
	StageTimings map[Stage]time.Duration
}

// Pipeline executes dubbing jobs. One Pipeline is shared by all jobs; all
// per-job state lives in the run struct.
type Pipeline struct {
	cfg         *config.Config
	downloader  Downloader
	transcriber Transcriber
	translation Translator
	synthesizer Synthesizer
	voiceCloner VoiceCloner
	separator   AudioSeparator
	audio       AudioProcessor
	cache       *resultcache.Cache
	logger      *slog.Logger
}

// Collaborators bundles the external services a Pipeline drives.
type Collaborators struct {
	Downloader  Downloader
	Transcriber Transcriber
	Translator  Translator
	Synthesizer Synthesizer
	VoiceCloner VoiceCloner
	Separator   AudioSeparator
	Audio       AudioProcessor
}

// New creates a Pipeline.
func New(cfg *config.Config, collab Collaborators, cache *resultcache.Cache, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:         cfg,
		downloader:  collab.Downloader,
		transcriber: collab.Transcriber,
		translation: collab.Translator,
		synthesizer: collab.Synthesizer,
		voiceCloner: collab.VoiceCloner,
		separator:   collab.Separator,
		audio:       collab.Audio,
		cache:       cache,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// run carries the working state of one job through the stage table.
type run struct {
	req      Request
	progress ProgressFunc
	logger   *slog.Logger

	// sourceKey identifies the job's source material for cache lookups,
	// independent of the job id.
	sourceKey string
	title     string

	videoPath      string
	audioPath      string
	vocalsPath     string
	backgroundPath string

	utterances []transcript.Utterance
	samples    map[string]string
	cloned     map[string]string
	voices     VoiceAssignment

	dubbedVocalsPath string
	finalAudioPath   string
	outputPath       string

	timings map[Stage]time.Duration
}

type stageStep struct {
	stage   Stage
	message string
	skip    func(*run) bool
	execute func(context.Context, *run) error
}

func (p *Pipeline) stageTable() []stageStep {
	cloningDisabled := func(r *run) bool { return !r.req.CloneVoices }
	return []stageStep{
		{StageDownloading, "fetching source media", nil, p.runDownload},
		{StageExtractingAudio, "extracting audio track", nil, p.runExtractAudio},
		{StageSeparatingAudio, "separating vocals from background", nil, p.runSeparate},
		{StageTranscribing, "transcribing speech", nil, p.runTranscribe},
		{StageExtractingSpeakerSamples, "collecting speaker samples", cloningDisabled, p.runExtractSamples},
		{StageCloningVoices, "cloning speaker voices", cloningDisabled, p.runCloneVoices},
		{StageTranslating, "translating utterances", nil, p.runTranslate},
		{StageSynthesizing, "synthesizing dubbed speech", nil, p.runSynthesize},
		{StageAligning, "aligning clips to source timing", nil, p.runAlign},
		{StageMixing, "mixing dubbed vocals with background", nil, p.runMix},
		{StageMuxing, "writing final video", nil, p.runMux},
	}
}

// Run executes the full stage sequence for one job. It returns a Result on
// success; on error the job is left at the failed stage's checkpoint and
// the caller records the failure. A stage may return an ErrDegraded-tagged
// error after applying its fallback; those are logged and the sequence
// keeps going. Everything else is fatal.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(Stage, int, string) {}
	}
	ctx = services.WithJobID(ctx, req.JobID)

	r := &run{
		req:      req,
		progress: progress,
		logger:   p.logger.With(logging.String(logging.FieldJobID, req.JobID)),
		timings:  make(map[Stage]time.Duration),
	}

	for _, step := range p.stageTable() {
		if step.skip != nil && step.skip(r) {
			continue
		}
		stageCtx := services.WithStage(ctx, string(step.stage))
		progress(step.stage, step.stage.Progress(), step.message)
		r.logger.Info("stage started", logging.String(logging.FieldStage, string(step.stage)))

		started := time.Now()
		err := step.execute(stageCtx, r)
		r.timings[step.stage] = time.Since(started)
		if err != nil {
			if services.IsDegraded(err) {
				// The stage already applied its fallback; the error only
				// reports what was lost.
				logging.WarnWithContext(r.logger, "stage degraded", "stage_degraded",
					logging.String(logging.FieldStage, string(step.stage)),
					logging.String(logging.FieldImpact, "job continues with reduced output quality"),
					logging.Error(err))
				continue
			}
			r.logger.Error("stage failed",
				logging.String(logging.FieldStage, string(step.stage)),
				logging.Error(err))
			return nil, fmt.Errorf("%s: %w", step.stage, err)
		}
		r.logger.Info("stage finished",
			logging.String(logging.FieldStage, string(step.stage)),
			logging.Duration("elapsed", r.timings[step.stage]))
	}

	progress(StageCompleted, StageCompleted.Progress(), "dubbing complete")
	return &Result{
		OutputPath:   r.outputPath,
		Title:        r.title,
		Utterances:   len(r.utterances),
		Speakers:     len(transcript.Speakers(r.utterances)),
		ClonedVoices: len(r.cloned),
		StageTimings: r.timings,
	}, nil
}
