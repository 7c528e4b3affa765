package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lumen/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, tools, and providers before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, _, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, registry)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				status := "pass"
				if !result.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
			))

			if !preflight.Passed(results) {
				return fmt.Errorf("one or more preflight checks failed")
			}
			return nil
		},
	}
	return cmd
}
