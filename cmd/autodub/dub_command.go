package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autodub/internal/jobs"
	"autodub/internal/pipeline"
)

func newDubCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceLanguage string
		targetLanguage string
		cloneVoices    bool
		trimStart      float64
		trimEnd        float64
	)

	cmd := &cobra.Command{
		Use:   "dub <url-or-path>",
		Short: "Dub a single video and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cfg, false)
			if err != nil {
				return err
			}
			defer rt.history.Close()

			spec := jobs.Spec{
				Source:         args[0],
				SourceLanguage: sourceLanguage,
				TargetLanguage: targetLanguage,
				CloneVoices:    cloneVoices,
			}
			if trimEnd > 0 {
				spec.Trim = &pipeline.TimeRange{Start: trimStart, End: trimEnd}
			}

			job, err := rt.registry.CreateJob(spec)
			if err != nil {
				return err
			}
			printf(cmd, "job %s started\n", job.ID)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			final, err := watchJob(signalCtx, rt.registry, job.ID, func(j jobs.Job) {
				printf(cmd, "  %3d%%  %s", j.Progress, j.Status)
				if j.Message != "" {
					printf(cmd, "  %s", j.Message)
				}
				printf(cmd, "\n")
			})
			if err != nil {
				return err
			}
			if final.Status == pipeline.StageFailed {
				return fmt.Errorf("dubbing failed: %s", final.Error)
			}
			printf(cmd, "dubbed video written to %s\n", final.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceLanguage, "from", "", "Source language code (auto-detected when empty)")
	cmd.Flags().StringVar(&targetLanguage, "to", "", "Target language code")
	cmd.Flags().BoolVar(&cloneVoices, "clone", false, "Clone speaker voices instead of using stock voices")
	cmd.Flags().Float64Var(&trimStart, "trim-start", 0, "Trim window start in seconds")
	cmd.Flags().Float64Var(&trimEnd, "trim-end", 0, "Trim window end in seconds")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// watchJob polls the registry until the job reaches a terminal status,
// invoking onChange whenever the stage or progress moves.
func watchJob(ctx context.Context, registry *jobs.Registry, id string, onChange func(jobs.Job)) (jobs.Job, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last jobs.Job
	for {
		job, ok := registry.GetJob(id)
		if !ok {
			return jobs.Job{}, fmt.Errorf("job %s disappeared", id)
		}
		if job.Status != last.Status || job.Progress != last.Progress {
			onChange(job)
			last = job
		}
		if job.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
