package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"autodub/internal/logging"
	"autodub/internal/pipeline"
	"autodub/internal/testsupport"
)

// scriptedRunner walks the progress callback through a fixed stage list
// and then succeeds or fails.
type scriptedRunner struct {
	mu     sync.Mutex
	stages []pipeline.Stage
	err    error
	runs   int
	block  chan struct{}
}

func (s *scriptedRunner) Run(_ context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	for _, stage := range s.stages {
		progress(stage, stage.Progress(), string(stage))
	}
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.Result{OutputPath: req.OutputDir + "/" + req.JobID + ".mp4", Utterances: 3}, nil
}

func happyStages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.StageDownloading,
		pipeline.StageExtractingAudio,
		pipeline.StageSeparatingAudio,
		pipeline.StageTranscribing,
		pipeline.StageTranslating,
		pipeline.StageSynthesizing,
		pipeline.StageAligning,
		pipeline.StageMixing,
		pipeline.StageMuxing,
		pipeline.StageCompleted,
	}
}

func newTestRegistry(t *testing.T, runner Runner) *Registry {
	t.Helper()
	return NewRegistry(testsupport.NewConfig(t), runner, nil, nil, logging.NewNop())
}

func TestCreateJobRunsToCompletion(t *testing.T) {
	runner := &scriptedRunner{stages: happyStages()}
	r := newTestRegistry(t, runner)

	created, err := r.CreateJob(Spec{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != pipeline.StageQueued || created.Progress != 0 {
		t.Fatalf("new job = %+v", created)
	}

	r.Wait()

	job, ok := r.GetJob(created.ID)
	if !ok {
		t.Fatal("job disappeared")
	}
	if job.Status != pipeline.StageCompleted || job.Progress != 100 {
		t.Fatalf("job = %+v", job)
	}
	if job.OutputPath == "" {
		t.Fatal("completed job must carry an output path")
	}
}

func TestCreateJobValidatesSpec(t *testing.T) {
	r := newTestRegistry(t, &scriptedRunner{})
	if _, err := r.CreateJob(Spec{TargetLanguage: "es"}); err == nil {
		t.Fatal("missing source must be rejected")
	}
	if _, err := r.CreateJob(Spec{Source: "x"}); err == nil {
		t.Fatal("missing target language must be rejected")
	}
	if _, err := r.CreateJob(Spec{Source: "x", TargetLanguage: "es", Trim: &pipeline.TimeRange{Start: 5, End: 5}}); err == nil {
		t.Fatal("empty trim window must be rejected")
	}
	if _, err := r.CreateJob(Spec{Source: "x", TargetLanguage: "not a language"}); err == nil {
		t.Fatal("malformed target language must be rejected")
	}
	r.Wait()
}

func TestCreateJobIDsAreUnique(t *testing.T) {
	runner := &scriptedRunner{stages: happyStages()}
	r := newTestRegistry(t, runner)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := r.CreateJob(Spec{Source: "https://example.com/v", TargetLanguage: "es"})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- job.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate job id %s", id)
		}
		seen[id] = true
	}
	r.Wait()

	if len(r.ListJobs()) != n {
		t.Fatalf("listed %d jobs, want %d", len(r.ListJobs()), n)
	}
}

func TestFailedJobFreezesProgress(t *testing.T) {
	runner := &scriptedRunner{
		stages: []pipeline.Stage{
			pipeline.StageDownloading,
			pipeline.StageExtractingAudio,
			pipeline.StageSeparatingAudio,
			pipeline.StageTranscribing,
		},
		err: errors.New("transcribing: no speech segments detected"),
	}
	r := newTestRegistry(t, runner)

	created, err := r.CreateJob(Spec{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r.Wait()

	job, _ := r.GetJob(created.ID)
	if job.Status != pipeline.StageFailed {
		t.Fatalf("status = %v", job.Status)
	}
	if job.Progress != pipeline.StageTranscribing.Progress() {
		t.Fatalf("progress = %d, want frozen at %d", job.Progress, pipeline.StageTranscribing.Progress())
	}
	if job.Error == "" || job.OutputPath != "" {
		t.Fatalf("failed job = %+v", job)
	}
}

func TestDeleteJobDoesNotCancelRun(t *testing.T) {
	runner := &scriptedRunner{stages: happyStages(), block: make(chan struct{})}
	r := newTestRegistry(t, runner)

	created, err := r.CreateJob(Spec{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !r.DeleteJob(created.ID) {
		t.Fatal("delete should report the job existed")
	}
	if r.DeleteJob(created.ID) {
		t.Fatal("second delete should report absence")
	}
	if _, ok := r.GetJob(created.ID); ok {
		t.Fatal("deleted job must not be readable")
	}

	// The pipeline keeps running after deletion and must finish cleanly.
	close(runner.block)
	r.Wait()
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.runs != 1 {
		t.Fatalf("runs = %d", runner.runs)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	runner := &scriptedRunner{stages: happyStages()}
	r := newTestRegistry(t, runner)

	created, err := r.CreateJob(Spec{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	last := -1
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Wait()
	}()
	for {
		job, ok := r.GetJob(created.ID)
		if ok {
			if job.Progress < last {
				t.Errorf("progress went backwards: %d -> %d", last, job.Progress)
			}
			last = job.Progress
			if job.Terminal() {
				break
			}
		}
		select {
		case <-done:
			job, _ := r.GetJob(created.ID)
			if !job.Terminal() {
				t.Fatal("job never reached a terminal state")
			}
			return
		default:
		}
	}
}
