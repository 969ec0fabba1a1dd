package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"autodub/internal/config"
	"autodub/internal/logging"
	"autodub/internal/pipeline"
	"autodub/internal/services"
)

// Runner executes one dubbing job. *pipeline.Pipeline satisfies it; tests
// substitute fakes.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error)
}

// Notifier receives terminal job events. Implementations must tolerate
// being called from job goroutines.
type Notifier interface {
	JobCompleted(ctx context.Context, job Job)
	JobFailed(ctx context.Context, job Job)
}

// Registry is the owner of all job records. A single mutex serializes both
// reads and writes; job-table contention is negligible next to pipeline
// work, so correctness wins over throughput.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job

	cfg      *config.Config
	runner   Runner
	history  *History
	notifier Notifier
	logger   *slog.Logger

	running sync.WaitGroup
}

// NewRegistry creates a Registry. history and notifier may be nil.
func NewRegistry(cfg *config.Config, runner Runner, history *History, notifier Notifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		jobs:     make(map[string]*Job),
		cfg:      cfg,
		runner:   runner,
		history:  history,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "jobs"),
	}
}

// CreateJob allocates a queued job and starts its pipeline in the
// background. It returns a snapshot of the new record immediately.
func (r *Registry) CreateJob(spec Spec) (Job, error) {
	if err := validateSpec(spec); err != nil {
		return Job{}, err
	}

	now := time.Now()
	job := &Job{
		ID:             uuid.NewString(),
		Source:         spec.Source,
		SourceLanguage: spec.SourceLanguage,
		TargetLanguage: spec.TargetLanguage,
		CloneVoices:    spec.CloneVoices,
		Trim:           spec.Trim,
		Status:         pipeline.StageQueued,
		Progress:       0,
		Message:        "queued",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	snapshot := *job
	r.mu.Unlock()

	r.running.Add(1)
	go r.execute(job.ID)

	r.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", job.Source),
		logging.String("target_language", job.TargetLanguage))
	return snapshot, nil
}

// GetJob returns a snapshot of one job record.
func (r *Registry) GetJob(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns snapshots of every known job, newest first.
func (r *Registry) ListJobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		list = append(list, *job)
	}
	sortJobs(list)
	return list
}

// DeleteJob removes a job record and reports whether it existed. A running
// pipeline is not cancelled; it finishes in the background and its final
// update lands on a record nobody can see.
func (r *Registry) DeleteJob(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	delete(r.jobs, id)
	return ok
}

// Wait blocks until every running pipeline has finished. Used by the
// one-shot command and during daemon shutdown.
func (r *Registry) Wait() {
	r.running.Wait()
}

func (r *Registry) execute(id string) {
	defer r.running.Done()

	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	req := pipeline.Request{
		JobID:          job.ID,
		Source:         job.Source,
		SourceLanguage: job.SourceLanguage,
		TargetLanguage: job.TargetLanguage,
		CloneVoices:    job.CloneVoices,
		Trim:           job.Trim,
		WorkDir:        r.cfg.JobWorkDir(job.ID),
		OutputDir:      r.cfg.Paths.OutputDir,
	}
	r.mu.Unlock()

	ctx := context.Background()
	result, err := r.runner.Run(ctx, req, func(stage pipeline.Stage, progress int, message string) {
		r.updateProgress(id, stage, progress, message)
	})

	if !r.cfg.Workflow.KeepTempFiles {
		if rmErr := os.RemoveAll(req.WorkDir); rmErr != nil {
			r.logger.Warn("could not clean job work directory",
				logging.String(logging.FieldJobID, id),
				logging.Error(rmErr))
		}
	}

	if err != nil {
		r.finishFailed(ctx, id, err)
		return
	}
	r.finishCompleted(ctx, id, result)
}

// updateProgress applies a stage-transition callback to the job record.
// Terminal records are never mutated again.
func (r *Registry) updateProgress(id string, stage pipeline.Stage, progress int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	if stage == pipeline.StageCompleted {
		// The completed transition is applied by finishCompleted, which
		// also records the output artifact.
		return
	}
	job.Status = stage
	job.Progress = progress
	job.Message = message
	job.UpdatedAt = time.Now()
}

func (r *Registry) finishCompleted(ctx context.Context, id string, result *pipeline.Result) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	var snapshot Job
	if ok {
		job.Status = pipeline.StageCompleted
		job.Progress = pipeline.StageCompleted.Progress()
		job.Message = "dubbing complete"
		job.OutputPath = result.OutputPath
		job.UpdatedAt = time.Now()
		snapshot = *job
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	r.logger.Info("job completed",
		logging.String(logging.FieldJobID, id),
		logging.String("output", result.OutputPath),
		logging.Int("utterances", result.Utterances))
	r.record(ctx, snapshot)
	if r.notifier != nil {
		r.notifier.JobCompleted(ctx, snapshot)
	}
}

// finishFailed transitions the job to failed, freezing the progress value
// the pipeline last reported.
func (r *Registry) finishFailed(ctx context.Context, id string, err error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	var snapshot Job
	if ok {
		job.Status = pipeline.StageFailed
		job.Message = "dubbing failed"
		job.Error = err.Error()
		job.UpdatedAt = time.Now()
		snapshot = *job
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	r.logger.Error("job failed",
		logging.String(logging.FieldJobID, id),
		logging.Alert("job_failed"),
		logging.Error(err))
	r.record(ctx, snapshot)
	if r.notifier != nil {
		r.notifier.JobFailed(ctx, snapshot)
	}
}

func (r *Registry) record(ctx context.Context, job Job) {
	if r.history == nil {
		return
	}
	if err := r.history.Record(ctx, job); err != nil {
		r.logger.Warn("could not record job history",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

func validateSpec(spec Spec) error {
	if spec.Source == "" {
		return services.Wrap(services.ErrValidation, "jobs", "create", "source is required", nil)
	}
	if spec.TargetLanguage == "" {
		return services.Wrap(services.ErrValidation, "jobs", "create", "target language is required", nil)
	}
	if _, err := language.Parse(spec.TargetLanguage); err != nil {
		return services.Wrap(services.ErrValidation, "jobs", "create", fmt.Sprintf("invalid target language %q", spec.TargetLanguage), err)
	}
	if spec.SourceLanguage != "" {
		if _, err := language.Parse(spec.SourceLanguage); err != nil {
			return services.Wrap(services.ErrValidation, "jobs", "create", fmt.Sprintf("invalid source language %q", spec.SourceLanguage), err)
		}
	}
	if spec.Trim != nil && spec.Trim.End <= spec.Trim.Start {
		return services.Wrap(services.ErrValidation, "jobs", "create", "trim window is empty", nil)
	}
	return nil
}

func sortJobs(list []Job) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
