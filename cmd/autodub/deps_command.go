package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autodub/internal/deps"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func newDepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "deps",
		Short:       "Check the external tools autodub shells out to",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := deps.CheckBinaries(deps.Requirements())
			colorize := shouldColorize(cmd.OutOrStdout())

			for _, status := range statuses {
				label := "OK"
				color := ansiGreen
				detail := status.Description
				if !status.Available {
					label = "MISSING"
					color = ansiRed
					detail = status.Detail
				}
				line := fmt.Sprintf("  %-10s [%s] %s", status.Name, label, detail)
				if colorize {
					line = color + line + ansiReset
				}
				printf(cmd, "%s\n", line)
			}

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tool(s) missing", len(missing))
			}
			return nil
		},
	}
}
