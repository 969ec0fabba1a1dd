package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"autodub/internal/daemon"
	"autodub/internal/deps"
	"autodub/internal/logging"
)

// minFreeWorkBytes is the free-space floor below which serve warns at
// startup. One job's uncompressed WAV tracks can take several gigabytes.
const minFreeWorkBytes = 2 << 30

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dubbing daemon",
		Long:  "Starts the HTTP API and processes submitted jobs until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements())); len(missing) > 0 {
				fmt.Fprintf(os.Stderr, "warn: missing required tools: %s\n", strings.Join(missing, ", "))
			}

			rt, err := buildRuntime(cfg, true)
			if err != nil {
				return err
			}
			defer rt.history.Close()

			for _, status := range []deps.Status{
				deps.CheckDirectoryAccess("work directory", cfg.Paths.WorkDir),
				deps.CheckDirectoryAccess("output directory", cfg.Paths.OutputDir),
				deps.CheckFreeSpace("work disk", cfg.Paths.WorkDir, minFreeWorkBytes),
			} {
				if !status.Available {
					fmt.Fprintf(os.Stderr, "warn: %s: %s\n", status.Name, status.Detail)
				}
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt.logger.Info("starting daemon", logging.String("bind", cfg.Paths.APIBind))
			return daemon.New(cfg, rt.registry, rt.logger).Run(signalCtx)
		},
	}
}
