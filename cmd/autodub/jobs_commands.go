package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"autodub/internal/jobs"
	"autodub/internal/pipeline"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage dubbing jobs on a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	jobsCmd.AddCommand(newJobsAddCommand(ctx))
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsHistoryCommand(ctx))

	return jobsCmd
}

func newJobsAddCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceLanguage string
		targetLanguage string
		cloneVoices    bool
		trimStart      float64
		trimEnd        float64
	)

	cmd := &cobra.Command{
		Use:   "add <url-or-path>",
		Short: "Submit a job to the daemon without waiting for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			spec := jobs.Spec{
				Source:         args[0],
				SourceLanguage: sourceLanguage,
				TargetLanguage: targetLanguage,
				CloneVoices:    cloneVoices,
			}
			if trimEnd > 0 {
				spec.Trim = &pipeline.TimeRange{Start: trimStart, End: trimEnd}
			}
			job, err := newAPIClient(cfg).submitJob(cmd.Context(), spec)
			if err != nil {
				return err
			}
			printf(cmd, "job %s queued\n", job.ID)
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

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs known to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			list, err := newAPIClient(cfg).listJobs(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printf(cmd, "no jobs\n")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					shortID(job.ID),
					string(job.Status),
					strconv.Itoa(job.Progress) + "%",
					job.TargetLanguage,
					humanize.Time(job.UpdatedAt),
					truncate(job.Source, 48),
				})
			}
			printf(cmd, "%s\n", renderTable(
				[]string{"ID", "STATUS", "PROGRESS", "TARGET", "UPDATED", "SOURCE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := newAPIClient(cfg).getJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobDetail(cmd, job)
			return nil
		},
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <job-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a job record from the daemon",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := newAPIClient(cfg).deleteJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "job %s removed\n", args[0])
			return nil
		},
	}
}

func newJobsHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished jobs from the on-disk journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			history, err := jobs.OpenHistory(cfg.Paths.LogDir)
			if err != nil {
				return err
			}
			defer history.Close()

			list, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printf(cmd, "no finished jobs\n")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				outcome := string(job.Status)
				if job.Status == pipeline.StageFailed && job.Error != "" {
					outcome = fmt.Sprintf("failed: %s", truncate(job.Error, 40))
				}
				rows = append(rows, []string{
					shortID(job.ID),
					job.TargetLanguage,
					humanize.Time(job.UpdatedAt),
					outcome,
					truncate(job.Source, 48),
				})
			}
			printf(cmd, "%s\n", renderTable(
				[]string{"ID", "TARGET", "FINISHED", "OUTCOME", "SOURCE"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to show")

	return cmd
}

func printJobDetail(cmd *cobra.Command, job jobs.Job) {
	printf(cmd, "ID:         %s\n", job.ID)
	printf(cmd, "Source:     %s\n", job.Source)
	if job.SourceLanguage != "" {
		printf(cmd, "From:       %s\n", job.SourceLanguage)
	}
	printf(cmd, "To:         %s\n", job.TargetLanguage)
	if job.Trim != nil {
		printf(cmd, "Trim:       %.2fs - %.2fs\n", job.Trim.Start, job.Trim.End)
	}
	printf(cmd, "Status:     %s (%d%%)\n", job.Status, job.Progress)
	if job.Message != "" {
		printf(cmd, "Message:    %s\n", job.Message)
	}
	if job.OutputPath != "" {
		printf(cmd, "Output:     %s\n", job.OutputPath)
	}
	if job.Error != "" {
		printf(cmd, "Error:      %s\n", job.Error)
	}
	printf(cmd, "Created:    %s\n", humanize.Time(job.CreatedAt))
	printf(cmd, "Updated:    %s\n", humanize.Time(job.UpdatedAt))
}
